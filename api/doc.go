// Package api is the typed HTTP client for the goStage backend: auth, current
// user, stage queries and lifecycle verbs, and report upload.
//
// Every call is bounded by the client timeout. Failures are returned as
// transport errors: a round-trip failure matches transport.ErrUnreachable and
// a non-2xx response is a *transport.StatusError matching its category.
// Credentials are attached by the http.Client's transport, not here.
package api
