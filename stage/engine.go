package stage

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/goStage/permission"
	"github.com/MrEthical07/goStage/user"
)

// Action names granted to roles.
const (
	ActionCreate   = "stage.create"
	ActionEdit     = "stage.edit"
	ActionDelete   = "stage.delete"
	ActionSubmit   = "stage.submit"
	ActionReview   = "stage.review"
	ActionAdvance  = "stage.advance"
	ActionCancel   = "stage.cancel"
	ActionReassign = "stage.reassign"
	ActionUpload   = "stage.upload"
)

// Request asks for a transition to To. EncadrantID is required when To is
// VALIDE and Comment when To is REFUSE.
type Request struct {
	To          State
	EncadrantID *int64
	Comment     string
}

// relation restricts an edge to actors with a given tie to the record.
type relation uint8

const (
	// relOwner: the student who created the stage.
	relOwner relation = iota
	// relReviewer: an admin, or a teacher who is the assigned encadrant or the
	// stage has none yet.
	relReviewer
	// relSupervisor: an admin, or the assigned encadrant.
	relSupervisor
	// relAdmin: admins only.
	relAdmin
)

type edge struct {
	from     State
	to       State
	action   string
	relation relation
}

// transitions is the full table. Cancellation from any non-terminal state is
// handled by cancelEdge after this table misses.
var transitions = []edge{
	{Brouillon, EnAttenteValidation, ActionSubmit, relOwner},
	{Refuse, EnAttenteValidation, ActionSubmit, relOwner},
	{EnAttenteValidation, Valide, ActionReview, relReviewer},
	{EnAttenteValidation, Refuse, ActionReview, relReviewer},
	{Valide, EnCours, ActionAdvance, relSupervisor},
	{Valide, Termine, ActionAdvance, relSupervisor},
	{Valide, Soutenu, ActionAdvance, relSupervisor},
	{Valide, Annule, ActionAdvance, relSupervisor},
}

var cancelEdge = edge{to: Annule, action: ActionCancel, relation: relAdmin}

// Engine validates and applies lifecycle operations. It is immutable after
// NewEngine and safe for concurrent use.
type Engine struct {
	roles    *permission.RoleManager
	validate *validator.Validate
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for UpdatedAt and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRoles replaces the default role grants.
func WithRoles(rm *permission.RoleManager) Option {
	return func(e *Engine) {
		if rm != nil {
			e.roles = rm
		}
	}
}

// NewEngine returns an Engine with the default role grants.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		roles:    DefaultRoles(),
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultRoles returns the frozen grants: students author their own stages,
// teachers review and supervise, admins review, supervise, cancel, reassign
// and delete. SOUS_ADMIN holds no stage action.
func DefaultRoles() *permission.RoleManager {
	reg := permission.NewRegistry()
	err := reg.Register(
		ActionCreate, ActionEdit, ActionDelete, ActionSubmit, ActionReview,
		ActionAdvance, ActionCancel, ActionReassign, ActionUpload,
	)
	if err != nil {
		panic(err)
	}
	reg.Freeze()

	rm, err := permission.NewRoleManager(reg, map[user.Role][]string{
		user.RoleEtudiant:   {ActionCreate, ActionEdit, ActionDelete, ActionSubmit, ActionUpload},
		user.RoleEnseignant: {ActionReview, ActionAdvance},
		user.RoleAdmin:      {ActionReview, ActionAdvance, ActionCancel, ActionReassign, ActionDelete},
		user.RoleSousAdmin:  nil,
	})
	if err != nil {
		panic(err)
	}
	return rm
}

// Apply performs the transition described by req on a copy of s.
//
// Checks run in order: the table (ErrIllegalTransition), the actor
// (ErrForbidden), then the preconditions (ErrValidationFailed).
func (e *Engine) Apply(actor Actor, s Stage, req Request) (Stage, error) {
	ed, ok := lookup(s.Etat, req.To)
	if !ok {
		return s, illegal(s.Etat, req.To)
	}
	if !e.permits(actor, s, ed) {
		return s, forbidden(string(s.Etat) + " -> " + string(req.To))
	}

	next := s.Clone()
	switch {
	case ed.action == ActionSubmit:
		if err := e.checkSubmission(s); err != nil {
			return s, err
		}
		next.CommentaireRefus = nil
	case req.To == Valide:
		if req.EncadrantID == nil || *req.EncadrantID <= 0 {
			return s, invalid("encadrantId", "required")
		}
		next.EncadrantID = cloneInt(req.EncadrantID)
		next.CommentaireRefus = nil
	case req.To == Refuse:
		comment := strings.TrimSpace(req.Comment)
		if comment == "" {
			return s, invalid("commentaire", "required")
		}
		next.CommentaireRefus = &comment
	default:
		next.CommentaireRefus = nil
	}

	next.Etat = req.To
	next.UpdatedAt = e.now()
	return next, nil
}

// Submit moves a draft or refused stage to EN_ATTENTE_VALIDATION.
func (e *Engine) Submit(actor Actor, s Stage) (Stage, error) {
	return e.Apply(actor, s, Request{To: EnAttenteValidation})
}

// Validate accepts a pending stage and assigns its encadrant.
func (e *Engine) Validate(actor Actor, s Stage, encadrantID *int64) (Stage, error) {
	return e.Apply(actor, s, Request{To: Valide, EncadrantID: encadrantID})
}

// Refuse rejects a pending stage with comment.
func (e *Engine) Refuse(actor Actor, s Stage, comment string) (Stage, error) {
	return e.Apply(actor, s, Request{To: Refuse, Comment: comment})
}

// Advance moves a validated stage to EN_COURS, TERMINE, SOUTENU or ANNULE.
func (e *Engine) Advance(actor Actor, s Stage, to State) (Stage, error) {
	return e.Apply(actor, s, Request{To: to})
}

// Cancel moves any non-terminal stage to ANNULE.
func (e *Engine) Cancel(actor Actor, s Stage) (Stage, error) {
	return e.Apply(actor, s, Request{To: Annule})
}

// Targets lists the states actor may currently request for s, in lifecycle
// order. Preconditions on request fields are not evaluated.
func (e *Engine) Targets(actor Actor, s Stage) []State {
	var out []State
	for _, to := range States() {
		ed, ok := lookup(s.Etat, to)
		if ok && e.permits(actor, s, ed) {
			out = append(out, to)
		}
	}
	return out
}

// Create returns a new BROUILLON stage owned by actor.
func (e *Engine) Create(actor Actor, d Draft) (Stage, error) {
	if !e.roles.Allows(actor.Role, ActionCreate) {
		return Stage{}, forbidden("create")
	}
	if err := checkDates(d.DateDebut, d.DateFin); err != nil {
		return Stage{}, err
	}
	if d.EncadrantID != nil && *d.EncadrantID <= 0 {
		return Stage{}, invalid("encadrantId", "gt")
	}
	now := e.now()
	return Stage{
		Sujet:       strings.TrimSpace(d.Sujet),
		Description: strings.TrimSpace(d.Description),
		Entreprise:  strings.TrimSpace(d.Entreprise),
		Ville:       strings.TrimSpace(d.Ville),
		DateDebut:   d.DateDebut,
		DateFin:     d.DateFin,
		Etat:        Brouillon,
		EtudiantID:  actor.ID,
		EncadrantID: cloneInt(d.EncadrantID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Edit applies p to a copy of s. Only the owning student may edit, and only
// while s is BROUILLON or REFUSE.
func (e *Engine) Edit(actor Actor, s Stage, p Patch) (Stage, error) {
	if !s.Etat.Editable() {
		return s, ErrNotEditable
	}
	if !e.roles.Allows(actor.Role, ActionEdit) || !actor.owns(s) {
		return s, forbidden("edit")
	}

	next := s.Clone()
	setString(&next.Sujet, p.Sujet)
	setString(&next.Description, p.Description)
	setString(&next.Entreprise, p.Entreprise)
	setString(&next.Ville, p.Ville)
	if p.DateDebut != nil {
		next.DateDebut = *p.DateDebut
	}
	if p.DateFin != nil {
		next.DateFin = *p.DateFin
	}
	if err := checkDates(next.DateDebut, next.DateFin); err != nil {
		return s, err
	}
	next.UpdatedAt = e.now()
	return next, nil
}

// CheckDelete reports whether actor may delete s: the owning student or an
// admin, and only while s is BROUILLON or REFUSE.
func (e *Engine) CheckDelete(actor Actor, s Stage) error {
	if !s.Etat.Editable() {
		return ErrNotDeletable
	}
	if !e.roles.Allows(actor.Role, ActionDelete) {
		return forbidden("delete")
	}
	if actor.Role == user.RoleEtudiant && !actor.owns(s) {
		return forbidden("delete")
	}
	return nil
}

// Reassign changes the encadrant of a validated or running stage. It does
// not change the state.
func (e *Engine) Reassign(actor Actor, s Stage, encadrantID int64) (Stage, error) {
	if s.Etat != Valide && s.Etat != EnCours {
		return s, notAllowedIn("reassign", s.Etat)
	}
	if !e.roles.Allows(actor.Role, ActionReassign) {
		return s, forbidden("reassign")
	}
	if encadrantID <= 0 {
		return s, invalid("encadrantId", "required")
	}
	next := s.Clone()
	next.EncadrantID = &encadrantID
	next.UpdatedAt = e.now()
	return next, nil
}

// AttachReport records the stored report path. Only the owning student may
// upload, while s is VALIDE or EN_COURS.
func (e *Engine) AttachReport(actor Actor, s Stage, path string) (Stage, error) {
	if s.Etat != Valide && s.Etat != EnCours {
		return s, notAllowedIn("upload", s.Etat)
	}
	if !e.roles.Allows(actor.Role, ActionUpload) || !actor.owns(s) {
		return s, forbidden("upload")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return s, invalid("rapportPath", "required")
	}
	next := s.Clone()
	next.RapportPath = &path
	next.UpdatedAt = e.now()
	return next, nil
}

func lookup(from, to State) (edge, bool) {
	for _, ed := range transitions {
		if ed.from == from && ed.to == to {
			return ed, true
		}
	}
	if to == Annule && from.Valid() && !from.Terminal() {
		ed := cancelEdge
		ed.from = from
		return ed, true
	}
	return edge{}, false
}

func (e *Engine) permits(actor Actor, s Stage, ed edge) bool {
	if !e.roles.Allows(actor.Role, ed.action) {
		return false
	}
	switch ed.relation {
	case relOwner:
		return actor.owns(s)
	case relReviewer:
		if actor.Role == user.RoleAdmin {
			return true
		}
		return actor.Role == user.RoleEnseignant && (s.EncadrantID == nil || *s.EncadrantID == actor.ID)
	case relSupervisor:
		return actor.Role == user.RoleAdmin || actor.supervises(s)
	case relAdmin:
		return actor.Role == user.RoleAdmin
	default:
		return false
	}
}

// submission is the view of a stage checked before it enters review.
type submission struct {
	Sujet       string    `json:"sujet" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Entreprise  string    `json:"entreprise" validate:"required"`
	Ville       string    `json:"ville" validate:"required"`
	DateDebut   time.Time `json:"dateDebut" validate:"required,ltfield=DateFin"`
	DateFin     time.Time `json:"dateFin" validate:"required"`
}

func (e *Engine) checkSubmission(s Stage) error {
	view := submission{
		Sujet:       strings.TrimSpace(s.Sujet),
		Description: strings.TrimSpace(s.Description),
		Entreprise:  strings.TrimSpace(s.Entreprise),
		Ville:       strings.TrimSpace(s.Ville),
		DateDebut:   s.DateDebut.Time,
		DateFin:     s.DateFin.Time,
	}
	err := e.validate.Struct(view)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Fields: []FieldError{{Field: "stage", Rule: err.Error()}}}
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

func checkDates(debut, fin Date) error {
	if debut.IsZero() || fin.IsZero() {
		return nil
	}
	if !debut.Before(fin.Time) {
		return invalid("dateDebut", "ltfield")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
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
