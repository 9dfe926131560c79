// Package transport wraps an http.RoundTripper so every request to a
// protected path carries the session credential, and every 401 from one
// reaches the session owner.
//
// # Architecture boundaries
//
// [Transport] never decides what a 401 means for the session; it calls the
// configured hook and hands the response back unchanged. [FromResponse] and
// [Classify] turn statuses into the error categories callers match with
// errors.Is.
//
// # What this package must NOT do
//
//   - Import goStage or session (the token source and hook are injected).
//   - Swallow a response: the caller always sees the original status.
package transport
