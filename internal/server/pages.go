package server

import (
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goStage/guard"
	"github.com/MrEthical07/goStage/middleware"
	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/user"
)

const shell = `<!doctype html>
<html lang="fr">
<head><meta charset="utf-8"><title>Gestion des stages</title></head>
<body data-area="%s"><div id="app"></div></body>
</html>
`

// mountPages serves the application shell for the browser areas. The server
// renders without a session store, so the guard runs non-interactively and
// always lets the shell through; the browser client enforces the area rules
// once its session is restored.
func (s *Server) mountPages(r chi.Router) {
	policy := guard.Policy{Env: session.NonInteractive, LoginPath: s.cfg.LoginPath}
	src := middleware.StateFunc(func() session.State { return session.State{} })

	r.Get("/", page(""))
	r.Get(s.cfg.LoginPath, page("login"))

	areas := []struct {
		prefix string
		role   user.Role
	}{
		{"/admin", user.RoleAdmin},
		{"/teacher", user.RoleEnseignant},
		{"/student", user.RoleEtudiant},
	}
	for _, area := range areas {
		gate := middleware.Page(src, policy, guard.RequireAuthenticated(), guard.RequireRole(area.role))
		h := gate(page(area.prefix[1:]))
		r.Handle(area.prefix, h)
		r.Handle(area.prefix+"/*", h)
	}
}

func page(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, shell, html.EscapeString(area))
	}
}
