// Package guard decides whether navigation to a protected area is allowed for
// a session snapshot.
//
// [Decide] is pure: it reads a [session.State] and an ordered list of [Check]
// values and returns a [Decision]. The first failing check wins. In a
// non-interactive environment every decision is Allow; enforcement is
// deferred to the interactive pass, so this is not a security boundary.
//
// Decisions are only meaningful in the interactive environment once the
// session reports Initialized; callers wait on the Client's ready signal
// before consulting the guard.
package guard
