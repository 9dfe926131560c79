package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/internal/repository"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/user"
)

/*
====================================
QUERIES
====================================
*/

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	s.writeList(w, r, repository.Filter{})
}

func (s *Server) handleMyStages(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.writeList(w, r, repository.Filter{EtudiantID: &a.ID})
}

// handleSearchStages searches every stage for staff and only the caller's own
// stages for students.
func (s *Server) handleSearchStages(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	f := repository.Filter{Query: r.URL.Query().Get("q")}
	if a.Role == user.RoleEtudiant {
		f.EtudiantID = &a.ID
	}
	s.writeList(w, r, f)
}

// handleStagesToValidate lists pending stages the caller may review: all of
// them for an admin, unassigned or own ones for a teacher.
func (s *Server) handleStagesToValidate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := s.stages.List(r.Context(), repository.Filter{Etats: []stage.State{stage.EnAttenteValidation}})
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	out := list[:0]
	for _, st := range list {
		if a.Role == user.RoleAdmin || st.EncadrantID == nil || *st.EncadrantID == a.ID {
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listBy(filter func(id int64) repository.Filter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "ref")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		s.writeList(w, r, filter(id))
	}
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, f repository.Filter) {
	list, err := s.stages.List(r.Context(), f)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetStage returns one stage. A student may only read their own.
func (s *Server) handleGetStage(w http.ResponseWriter, r *http.Request) {
	a, st, ok := s.load(w, r)
	if !ok {
		return
	}
	if a.Role == user.RoleEtudiant && st.EtudiantID != a.ID {
		writeError(w, http.StatusForbidden, "not your stage")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

/*
====================================
MUTATIONS
====================================
*/

func (s *Server) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var d stage.Draft
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := s.engine.Create(a, d)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	if acc, err := s.users.ByID(r.Context(), a.ID); err == nil {
		st.FiliereID = acc.Record.FiliereID
	}

	created, err := s.stages.Create(r.Context(), st)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleEditStage(w http.ResponseWriter, r *http.Request) {
	a, st, ok := s.load(w, r)
	if !ok {
		return
	}
	var p stage.Patch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	next, err := s.engine.Edit(a, st, p)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	saved, err := s.stages.Update(r.Context(), next, st.Version)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	a, st, ok := s.load(w, r)
	if !ok {
		return
	}
	if err := s.engine.CheckDelete(a, st); err != nil {
		s.writeStageError(w, r, err)
		return
	}
	if err := s.stages.Delete(r.Context(), st.ID, st.Version); err != nil {
		s.writeStageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reassignRequest struct {
	EncadrantID int64 `json:"encadrantId" validate:"required,gt=0"`
}

func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	a, st, ok := s.load(w, r)
	if !ok {
		return
	}
	var req reassignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeInvalid(w, err)
		return
	}
	if err := s.checkEncadrant(r.Context(), req.EncadrantID); err != nil {
		s.writeStageError(w, r, err)
		return
	}

	next, err := s.engine.Reassign(a, st, req.EncadrantID)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	saved, err := s.stages.Update(r.Context(), next, st.Version)
	if err != nil {
		s.writeStageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

/*
====================================
TRANSITIONS
====================================
*/

type requestBuilder func(r *http.Request) (stage.Request, error)

var errBadQuery = errors.New("invalid query parameter")

func submitRequest(*http.Request) (stage.Request, error) {
	return stage.Request{To: stage.EnAttenteValidation}, nil
}

func validateRequest(r *http.Request) (stage.Request, error) {
	req := stage.Request{To: stage.Valide}
	if raw := r.URL.Query().Get("encadrantId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, errBadQuery
		}
		req.EncadrantID = &id
	}
	return req, nil
}

func refuseRequest(r *http.Request) (stage.Request, error) {
	return stage.Request{To: stage.Refuse, Comment: r.URL.Query().Get("commentaire")}, nil
}

// statusRequest reads the operational progression target of a validated
// stage.
func statusRequest(r *http.Request) (stage.Request, error) {
	to := stage.State(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("etat"))))
	switch to {
	case stage.EnCours, stage.Termine, stage.Soutenu, stage.Annule:
		return stage.Request{To: to}, nil
	default:
		return stage.Request{}, errBadQuery
	}
}

func cancelRequest(*http.Request) (stage.Request, error) {
	return stage.Request{To: stage.Annule}, nil
}

func (s *Server) transition(build requestBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, st, ok := s.load(w, r)
		if !ok {
			return
		}
		req, err := build(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ctx := r.Context()
		ev := audit.Event{
			EventType: audit.EventStageTransition,
			UserID:    audit.UserIDString(a.ID),
			Role:      a.Role.String(),
			StageID:   strconv.FormatInt(st.ID, 10),
			RequestID: RequestIDFromContext(ctx),
			Metadata: map[string]string{
				"from": st.Etat.String(),
				"to":   req.To.String(),
			},
		}

		next, err := s.engine.Apply(a, st, req)
		if err == nil && req.EncadrantID != nil {
			err = s.checkEncadrant(ctx, *req.EncadrantID)
		}
		if err == nil {
			next, err = s.stages.Update(ctx, next, st.Version)
		}
		if err != nil {
			ev.Error = err.Error()
			s.emit(ctx, ev)
			s.writeStageError(w, r, err)
			return
		}

		ev.Success = true
		s.emit(ctx, ev)
		s.logger.Info("stage transition applied",
			zap.Int64("stage_id", st.ID),
			zap.String("from", st.Etat.String()),
			zap.String("to", next.Etat.String()),
			zap.Int64("user_id", a.ID),
		)
		writeJSON(w, http.StatusOK, next)
	}
}

// load resolves the caller and the {id} stage, answering the error itself
// when either is missing.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (stage.Actor, stage.Stage, bool) {
	a, ok := actor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return stage.Actor{}, stage.Stage{}, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stage id")
		return stage.Actor{}, stage.Stage{}, false
	}
	st, err := s.stages.Get(r.Context(), id)
	if err != nil {
		s.writeStageError(w, r, err)
		return stage.Actor{}, stage.Stage{}, false
	}
	return a, st, true
}

// checkEncadrant requires id to be an existing teacher account.
func (s *Server) checkEncadrant(ctx context.Context, id int64) error {
	acc, err := s.users.ByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && acc.Record.Role != user.RoleEnseignant) {
		return &stage.ValidationError{Fields: []stage.FieldError{{Field: "encadrantId", Rule: "teacher"}}}
	}
	return err
}
