// Package token decodes and issues the signed credentials carried by a goStage
// session.
//
// [Decode] and [IsExpired] are the client-side codec: they inspect the claims
// segment of a credential without verifying its signature, which is the
// server's job. [Signer] is the server-side counterpart that issues and
// verifies credentials with a configured key.
//
// # What this package must NOT do
//
//   - Perform network or storage I/O.
//   - Treat an expired but well-formed credential as malformed: expiry is a
//     separate boolean ([IsExpired]) or a separate error ([ErrExpired]).
//   - Import goStage or session (no upward imports).
package token
