package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/goStage/api"
	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/internal/rate"
	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/password"
	"github.com/MrEthical07/goStage/user"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Nom       string    `json:"nom" validate:"required"`
	Prenom    string    `json:"prenom" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required,min=6"`
	Role      user.Role `json:"role,omitempty"`
	FiliereID *int64    `json:"filiereId,omitempty" validate:"omitempty,gt=0"`
	Annee     *int      `json:"annee,omitempty" validate:"omitempty,gte=1,lte=8"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		writeInvalid(w, err)
		return
	}

	ctx := r.Context()
	ip := clientIP(r)
	if err := s.limiter.Check(ctx, req.Email, ip); err != nil {
		s.writeLimiterError(w, r, err)
		return
	}

	acc, err := s.users.ByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.loginFailed(w, r, req.Email, ip, "unknown account")
		return
	case err != nil:
		s.logger.Error("login lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ok, err := s.hasher.Verify(req.Password, acc.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		s.logger.Error("stored password hash unreadable",
			zap.Int64("user_id", acc.Record.ID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		s.loginFailed(w, r, req.Email, ip, "bad password")
		return
	}

	raw, _, err := s.signer.Issue(acc.Record)
	if err != nil {
		s.logger.Error("issue credential failed", zap.Int64("user_id", acc.Record.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.limiter.Reset(ctx, req.Email); err != nil {
		s.logger.Warn("login limiter reset failed", zap.Error(err))
	}
	s.emit(ctx, audit.Event{
		EventType: audit.EventLoginSuccess,
		UserID:    audit.UserIDString(acc.Record.ID),
		Role:      acc.Record.Role.String(),
		RequestID: RequestIDFromContext(ctx),
		Success:   true,
	})

	rec := acc.Record
	writeJSON(w, http.StatusOK, api.LoginResponse{
		ID:        rec.ID,
		Nom:       rec.Nom,
		Prenom:    rec.Prenom,
		Email:     rec.Email,
		Role:      rec.Role,
		Token:     raw,
		FiliereID: rec.FiliereID,
		Annee:     rec.Annee,
	})
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, email, ip, reason string) {
	ctx := r.Context()
	s.emit(ctx, audit.Event{
		EventType: audit.EventLoginFailure,
		RequestID: RequestIDFromContext(ctx),
		Error:     reason,
	})
	if err := s.limiter.Fail(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		s.logger.Warn("login limiter update failed", zap.Error(err))
	}
	writeError(w, http.StatusUnauthorized, "invalid credentials")
}

func (s *Server) writeLimiterError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	s.logger.Error("login limiter unavailable",
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusServiceUnavailable, "login temporarily unavailable")
}

// handleRegister creates a student or teacher account. Administrative roles
// are provisioned out of band.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Nom = strings.TrimSpace(req.Nom)
	req.Prenom = strings.TrimSpace(req.Prenom)
	if err := s.validate.Struct(req); err != nil {
		writeInvalid(w, err)
		return
	}

	role := user.RoleEtudiant
	if req.Role != "" {
		parsed, ok := user.ParseRole(req.Role.String())
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}
	if role != user.RoleEtudiant && role != user.RoleEnseignant {
		writeError(w, http.StatusForbidden, "role cannot be self-registered")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("hash password failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	acc, err := s.users.Create(r.Context(), repository.Account{
		Record: user.Record{
			Nom:       req.Nom,
			Prenom:    req.Prenom,
			Email:     req.Email,
			Role:      role,
			FiliereID: req.FiliereID,
			Annee:     req.Annee,
		},
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		s.logger.Error("create account failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("account registered",
		zap.Int64("user_id", acc.Record.ID),
		zap.String("role", acc.Record.Role.String()),
	)
	writeJSON(w, http.StatusCreated, acc.Record)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	acc, err := s.users.ByID(r.Context(), a.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("load profile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, acc.Record)
}

func (s *Server) emit(ctx context.Context, ev audit.Event) {
	s.audit.Emit(ctx, ev)
}
