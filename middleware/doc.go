// Package middleware adapts credential verification and guard decisions to
// net/http handlers.
//
//   - [RequireBearer] verifies the Authorization header and injects claims.
//   - [RequireRole] gates a handler on the verified role.
//   - [Page] turns a guard decision into a redirect for HTML areas.
//
// The package never issues credentials and never talks to a store.
package middleware
