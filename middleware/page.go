package middleware

import (
	"net/http"

	"github.com/MrEthical07/goStage/guard"
	"github.com/MrEthical07/goStage/session"
)

// StateSource yields the session snapshot a page decision is made on.
// *goStage.Client implements it.
type StateSource interface {
	State() session.State
}

// StateFunc adapts a function to StateSource.
type StateFunc func() session.State

func (f StateFunc) State() session.State { return f() }

// Page gates an HTML area with guard.Decide. A redirect decision answers
// 302 to the decision URL.
func Page(src StateSource, policy guard.Policy, checks ...guard.Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s session.State
			if src != nil {
				s = src.State()
			}
			d := policy.Decide(s, checks...)
			if !d.Allow {
				http.Redirect(w, r, d.URL(), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
