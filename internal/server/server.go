package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/internal/rate"
	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/middleware"
	"github.com/MrEthical07/goStage/password"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/token"
	"github.com/MrEthical07/goStage/user"
)

const defaultMaxUploadBytes = 10 << 20

type Config struct {
	// LoginPath is where the app shell sends unauthenticated visitors.
	LoginPath      string
	UploadDir      string
	MaxUploadBytes int64
}

// Deps are the collaborators of a Server. Users, Stages, Signer and Hasher
// are required; the rest have defaults.
type Deps struct {
	Users   repository.Users
	Stages  repository.Stages
	Signer  *token.Signer
	Hasher  *password.Hasher
	Engine  *stage.Engine
	Limiter *rate.Limiter
	Audit   *audit.Dispatcher
	Logger  *zap.Logger
}

type Server struct {
	cfg      Config
	users    repository.Users
	stages   repository.Stages
	signer   *token.Signer
	hasher   *password.Hasher
	engine   *stage.Engine
	limiter  *rate.Limiter
	audit    *audit.Dispatcher
	logger   *zap.Logger
	validate *validator.Validate
}

func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Users == nil || deps.Stages == nil:
		return nil, errors.New("server: repositories are required")
	case deps.Signer == nil:
		return nil, errors.New("server: signer is required")
	case deps.Hasher == nil:
		return nil, errors.New("server: password hasher is required")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "reports"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if deps.Engine == nil {
		deps.Engine = stage.NewEngine()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Server{
		cfg:      cfg,
		users:    deps.Users,
		stages:   deps.Stages,
		signer:   deps.Signer,
		hasher:   deps.Hasher,
		engine:   deps.Engine,
		limiter:  deps.Limiter,
		audit:    deps.Audit,
		logger:   deps.Logger,
		validate: newValidator(),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.logRequests, chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post(api.PathLogin, s.handleLogin)
	r.Post(api.PathRegister, s.handleRegister)

	staff := middleware.RequireRole(user.RoleAdmin, user.RoleSousAdmin, user.RoleEnseignant)
	reviewers := middleware.RequireRole(user.RoleAdmin, user.RoleEnseignant)
	students := middleware.RequireRole(user.RoleEtudiant)
	admins := middleware.RequireRole(user.RoleAdmin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBearer(s.signer))

		r.Get(api.PathMe, s.handleMe)

		r.Route("/api/stages", func(r chi.Router) {
			r.With(staff).Get("/", s.handleListStages)
			r.With(students).Post("/", s.handleCreateStage)
			r.With(students).Get("/my-stages", s.handleMyStages)
			r.Get("/search", s.handleSearchStages)
			r.With(reviewers).Get("/to-validate", s.handleStagesToValidate)
			r.With(staff).Get("/filiere/{ref}", s.listBy(func(id int64) repository.Filter {
				return repository.Filter{FiliereID: &id}
			}))
			r.With(staff).Get("/student/{ref}", s.listBy(func(id int64) repository.Filter {
				return repository.Filter{EtudiantID: &id}
			}))
			r.With(staff).Get("/teacher/{ref}", s.listBy(func(id int64) repository.Filter {
				return repository.Filter{EncadrantID: &id}
			}))
			r.With(staff).Get("/encadrant/{ref}", s.listBy(func(id int64) repository.Filter {
				return repository.Filter{EncadrantID: &id}
			}))

			r.Get("/{id}", s.handleGetStage)
			r.Put("/{id}", s.handleEditStage)
			r.Delete("/{id}", s.handleDeleteStage)

			r.Put("/{id}/submit", s.transition(submitRequest))
			r.Put("/{id}/validate", s.transition(validateRequest))
			r.Put("/{id}/refuse", s.transition(refuseRequest))
			r.Put("/{id}/status", s.transition(statusRequest))
			r.Put("/{id}/cancel", s.transition(cancelRequest))
			r.With(admins).Post("/{id}/reassign-encadrant", s.handleReassign)
		})

		r.Post("/api/documents/upload/{id}", s.handleUpload)
	})

	s.mountPages(r)

	return r
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
