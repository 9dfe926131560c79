package session

import "github.com/MrEthical07/goStage/user"

// Phase is the Session Manager lifecycle phase.
type Phase uint8

const (
	// PhaseRestoring is the initial phase until the first restore completes.
	PhaseRestoring Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseRestoring:
		return "restoring"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Environment distinguishes the interactive client, which owns a durable
// store, from a non-interactive rendering pass, which never reads one.
type Environment uint8

const (
	Interactive Environment = iota
	NonInteractive
)

func (e Environment) String() string {
	if e == NonInteractive {
		return "non-interactive"
	}
	return "interactive"
}

// ReasonSessionExpired marks a session ended by the server rejecting its
// credential rather than by an explicit logout.
const ReasonSessionExpired = "session-expired"

// State is a read-only snapshot of the process session.
type State struct {
	User          *user.Record
	Token         string
	Authenticated bool
	Initialized   bool
	Phase         Phase
	// Reason is why the previous session ended; empty after an explicit
	// logout or a successful login.
	Reason string
}

// Role returns the session role, or false when no user is present.
func (s State) Role() (user.Role, bool) {
	if s.User == nil {
		return "", false
	}
	return s.User.Role, true
}
