package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/middleware"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/user"
)

type errorResponse struct {
	Message string             `json:"message"`
	Errors  []stage.FieldError `json:"errors,omitempty"`
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeInvalid answers 400 with the failing fields of a validator error.
func writeInvalid(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	resp := errorResponse{Message: "invalid request", Errors: make([]stage.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		resp.Errors = append(resp.Errors, stage.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// writeStageError maps engine and repository errors to statuses.
func (s *Server) writeStageError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *stage.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Error(), Errors: verr.Fields})
	case errors.Is(err, stage.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, stage.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "stage was modified concurrently")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "stage not found")
	default:
		s.logger.Error("stage request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// actor returns the verified caller. RequireBearer has run, so missing
// claims only happen on a malformed subject.
func actor(r *http.Request) (stage.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return stage.Actor{}, false
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return stage.Actor{}, false
	}
	role, _ := user.ParseRole(claims.Role.String())
	return stage.Actor{ID: id, Role: role}, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
