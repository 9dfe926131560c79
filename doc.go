// Package goStage is the session core of the internship platform client: it
// logs a user in, persists and restores the session, invalidates it when the
// backend rejects the credential, and runs stage lifecycle requests through
// the same engine the server enforces.
//
// The package exposes [Client], [Builder], [Config], and value types
// ([MetricsSnapshot], [LoginError]). One Client exists per running process and
// it is the only writer of the session; every other component reads
// [Client.State] snapshots.
//
// # Architecture boundaries
//
// Leaf packages own the pieces: token (credential codec), session (state and
// durable store), guard (navigation decisions), stage (lifecycle engine),
// transport (bearer attachment and 401 interception) and api (typed backend
// calls). They never import goStage.
//
// # Startup
//
// An interactive process must call [Client.Restore] once and wait on
// [Client.Ready] (or [Client.WaitReady]) before evaluating any guard. A
// non-interactive Client is initialized at Build time as unauthenticated and
// never touches a store.
package goStage
