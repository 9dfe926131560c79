// Package audit relays session and stage lifecycle events to pluggable sinks.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zap logger, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one record with type, user, role, stage and request ids.
//
// The package never decides which events to emit; the session client and the
// stage server do. It must not import goStage or any sibling internal package.
package audit
