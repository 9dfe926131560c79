// Package session holds the durable half of a goStage session: the [State]
// snapshot exposed to readers and the [Store] that persists the current user
// record and raw credential under two keys.
//
// # Storage
//
// [Store] sits on a [KV] collaborator. [RedisKV] backs shared deployments,
// [FileKV] backs the command-line client across process restarts, and
// [MemoryKV] backs tests and single-process embedding. A non-interactive
// environment has no store at all; the Client never constructs one there.
//
// # Architecture boundaries
//
// This package persists and reloads entries. It does NOT decode or judge
// credentials (that is package token) and does NOT own the in-memory session
// (that is goStage.Client).
//
// # What this package must NOT do
//
//   - Import goStage, guard, or stage (no upward imports).
//   - Keep a credential after Purge returns.
package session
