package goStage

import (
	"context"
	"io"
	"strconv"

	"github.com/MrEthical07/goStage/internal/audit"
	"github.com/MrEthical07/goStage/stage"
	"go.uber.org/zap"
)

// Stages runs stage operations for the session user. Each mutation is first
// checked by the lifecycle engine with the session actor, so a request the
// server would reject for state, role or missing fields never leaves the
// process. The server re-validates and its record is the one returned.
type Stages struct {
	client *Client
	engine *stage.Engine
}

// Engine returns the lifecycle engine used for pre-checks.
func (s *Stages) Engine() *stage.Engine {
	return s.engine
}

func (s *Stages) actor() (stage.Actor, error) {
	st := s.client.State()
	if !st.Authenticated || st.User == nil {
		return stage.Actor{}, ErrNotAuthenticated
	}
	return stage.ActorFrom(*st.User), nil
}

// Targets lists the states the session user may move st to.
func (s *Stages) Targets(st stage.Stage) []stage.State {
	actor, err := s.actor()
	if err != nil {
		return nil
	}
	return s.engine.Targets(actor, st)
}

/*
====================================
QUERIES
====================================
*/

func (s *Stages) Get(ctx context.Context, id int64) (*stage.Stage, error) {
	return s.client.api.Stage(ctx, id)
}

func (s *Stages) All(ctx context.Context) ([]stage.Stage, error) {
	return s.client.api.Stages(ctx)
}

// Mine lists the stages of the session student.
func (s *Stages) Mine(ctx context.Context) ([]stage.Stage, error) {
	return s.client.api.MyStages(ctx)
}

func (s *Stages) ToValidate(ctx context.Context) ([]stage.Stage, error) {
	return s.client.api.StagesToValidate(ctx)
}

func (s *Stages) Search(ctx context.Context, q string) ([]stage.Stage, error) {
	return s.client.api.SearchStages(ctx, q)
}

/*
====================================
MUTATIONS
====================================
*/

// Create opens a new draft.
func (s *Stages) Create(ctx context.Context, d stage.Draft) (*stage.Stage, error) {
	actor, err := s.actor()
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.Create(actor, d); err != nil {
		return nil, err
	}
	return s.client.api.CreateStage(ctx, d)
}

// Edit updates the descriptive fields of a draft or refused stage.
func (s *Stages) Edit(ctx context.Context, st stage.Stage, p stage.Patch) (*stage.Stage, error) {
	actor, err := s.actor()
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.Edit(actor, st, p); err != nil {
		return nil, err
	}
	return s.client.api.UpdateStage(ctx, st.ID, p)
}

func (s *Stages) Delete(ctx context.Context, st stage.Stage) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}
	if err := s.engine.CheckDelete(actor, st); err != nil {
		return err
	}
	return s.client.api.DeleteStage(ctx, st.ID)
}

func (s *Stages) Submit(ctx context.Context, st stage.Stage) (*stage.Stage, error) {
	return s.transition(ctx, st, stage.Request{To: stage.EnAttenteValidation}, func() (*stage.Stage, error) {
		return s.client.api.SubmitStage(ctx, st.ID)
	})
}

func (s *Stages) Validate(ctx context.Context, st stage.Stage, encadrantID int64) (*stage.Stage, error) {
	req := stage.Request{To: stage.Valide, EncadrantID: &encadrantID}
	return s.transition(ctx, st, req, func() (*stage.Stage, error) {
		return s.client.api.ValidateStage(ctx, st.ID, encadrantID)
	})
}

func (s *Stages) Refuse(ctx context.Context, st stage.Stage, comment string) (*stage.Stage, error) {
	return s.transition(ctx, st, stage.Request{To: stage.Refuse, Comment: comment}, func() (*stage.Stage, error) {
		return s.client.api.RefuseStage(ctx, st.ID, comment)
	})
}

// Advance moves a validated stage along its operational progression.
func (s *Stages) Advance(ctx context.Context, st stage.Stage, to stage.State) (*stage.Stage, error) {
	return s.transition(ctx, st, stage.Request{To: to}, func() (*stage.Stage, error) {
		return s.client.api.AdvanceStage(ctx, st.ID, to)
	})
}

func (s *Stages) Cancel(ctx context.Context, st stage.Stage) (*stage.Stage, error) {
	return s.transition(ctx, st, stage.Request{To: stage.Annule}, func() (*stage.Stage, error) {
		return s.client.api.CancelStage(ctx, st.ID)
	})
}

// Reassign changes the encadrant of a validated or running stage.
func (s *Stages) Reassign(ctx context.Context, st stage.Stage, encadrantID int64) (*stage.Stage, error) {
	actor, err := s.actor()
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.Reassign(actor, st, encadrantID); err != nil {
		return nil, err
	}
	return s.client.api.ReassignEncadrant(ctx, st.ID, encadrantID)
}

// UploadReport sends the internship report of st.
func (s *Stages) UploadReport(ctx context.Context, st stage.Stage, filename string, r io.Reader) (*stage.Stage, error) {
	actor, err := s.actor()
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.AttachReport(actor, st, filename); err != nil {
		return nil, err
	}
	return s.client.api.UploadReport(ctx, st.ID, filename, r)
}

func (s *Stages) transition(ctx context.Context, st stage.Stage, req stage.Request, call func() (*stage.Stage, error)) (*stage.Stage, error) {
	actor, err := s.actor()
	if err != nil {
		return nil, err
	}

	ev := audit.Event{
		EventType: audit.EventStageTransition,
		UserID:    audit.UserIDString(actor.ID),
		Role:      actor.Role.String(),
		StageID:   strconv.FormatInt(st.ID, 10),
		Metadata: map[string]string{
			"from": string(st.Etat),
			"to":   string(req.To),
		},
	}

	if _, err := s.engine.Apply(actor, st, req); err != nil {
		s.rejected(ctx, ev, err)
		return nil, err
	}

	out, err := call()
	if err != nil {
		s.rejected(ctx, ev, err)
		return nil, err
	}

	s.client.metrics.Inc(MetricTransitionApplied)
	ev.Success = true
	s.client.emit(ctx, ev)
	return out, nil
}

func (s *Stages) rejected(ctx context.Context, ev audit.Event, err error) {
	s.client.metrics.Inc(MetricTransitionRejected)
	ev.Error = err.Error()
	s.client.emit(ctx, ev)
	s.client.logger.Debug("stage transition rejected",
		zap.String("stage_id", ev.StageID),
		zap.String("to", ev.Metadata["to"]),
		zap.Error(err),
	)
}
