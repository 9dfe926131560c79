// Package stage implements the internship ("stage") lifecycle: the closed set
// of states, the table of legal transitions, who may trigger each one, and the
// edit and delete restrictions that hold regardless of caller.
//
// # Atomicity
//
// Every [Engine] operation takes a [Stage] by value and returns a new value.
// The input is never modified, so a rejected operation leaves the caller's
// record exactly as it was and an accepted one changes the state and its
// transition fields together.
//
// # Architecture boundaries
//
// The engine is a pure decision function. It performs no I/O and is shared by
// the client, which checks before sending a request, and the server, which
// re-validates before persisting. Concurrent-edit conflicts are the
// repository's concern.
//
// # What this package must NOT do
//
//   - Import goStage, session, transport, or api.
//   - Partially apply a rejected transition.
package stage
