package guard

import (
	"net/url"

	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/user"
)

// DefaultLoginPath is the unauthenticated entry point.
const DefaultLoginPath = "/login"

// Decision is the outcome of Decide. When Allow is false the caller must
// navigate to RedirectTo.
type Decision struct {
	Allow      bool
	RedirectTo string
	// Reason is carried to the entry point; "session-expired" after a
	// forced logout, empty otherwise.
	Reason string
}

// URL renders RedirectTo with the reason as a query parameter.
func (d Decision) URL() string {
	if d.Allow {
		return ""
	}
	if d.Reason == "" {
		return d.RedirectTo
	}
	u, err := url.Parse(d.RedirectTo)
	if err != nil {
		return d.RedirectTo
	}
	q := u.Query()
	q.Set("reason", d.Reason)
	u.RawQuery = q.Encode()
	return u.String()
}

// Check is one composable requirement.
type Check func(session.State) bool

// RequireAuthenticated passes for an authenticated session.
func RequireAuthenticated() Check {
	return func(s session.State) bool {
		return s.Authenticated && s.User != nil && s.Token != ""
	}
}

// RequireRole passes for an authenticated session whose user holds role.
func RequireRole(role user.Role) Check {
	auth := RequireAuthenticated()
	return func(s session.State) bool {
		return auth(s) && s.User.Role == role
	}
}

// Decide evaluates checks in order against s.
func Decide(env session.Environment, s session.State, loginPath string, checks ...Check) Decision {
	if env == session.NonInteractive {
		return Decision{Allow: true}
	}
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	for _, check := range checks {
		if check == nil {
			continue
		}
		if !check(s) {
			return Decision{RedirectTo: loginPath, Reason: redirectReason(s)}
		}
	}
	return Decision{Allow: true}
}

// Area decides for a protected area that requires authentication and,
// when role is non-empty, that role.
func Area(env session.Environment, s session.State, loginPath string, role user.Role) Decision {
	checks := []Check{RequireAuthenticated()}
	if role != "" {
		checks = append(checks, RequireRole(role))
	}
	return Decide(env, s, loginPath, checks...)
}

// Policy binds an environment and login path so handlers can decide with
// only the session snapshot.
type Policy struct {
	Env       session.Environment
	LoginPath string
}

func (p Policy) Decide(s session.State, checks ...Check) Decision {
	return Decide(p.Env, s, p.LoginPath, checks...)
}

func redirectReason(s session.State) string {
	if s.Authenticated {
		return ""
	}
	return s.Reason
}
