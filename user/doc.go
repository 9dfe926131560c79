// Package user defines the account model shared by every goStage package: the
// closed [Role] enumeration and the [Record] held by an authenticated session.
//
// # What this package must NOT do
//
//   - Import goStage or any sibling package.
//   - Perform I/O.
package user
