// Package permission maps roles to the named actions they may perform,
// stored as 64-bit masks.
//
// Actions get a bit each in a [Registry]. A [RoleManager] resolves the grant
// table once against the registry and never changes afterwards.
//
// This package answers "may this role perform this action". Ownership and
// record-state rules live with the callers in package stage.
package permission
