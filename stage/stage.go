package stage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goStage/user"
)

const dateLayout = "2006-01-02"

// Date is a calendar day. It marshals as "2006-01-02" and also accepts
// RFC 3339 timestamps.
type Date struct {
	time.Time
}

// NewDate returns the given calendar day at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.Time = time.Time{}
		return nil
	}
	s := strings.TrimSpace(*raw)
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("stage: invalid date %q", s)
	}
	d.Time = t
	return nil
}

// Stage is one internship record.
type Stage struct {
	ID               int64     `json:"id"`
	Sujet            string    `json:"sujet"`
	Description      string    `json:"description"`
	Entreprise       string    `json:"entreprise"`
	Ville            string    `json:"ville"`
	DateDebut        Date      `json:"dateDebut"`
	DateFin          Date      `json:"dateFin"`
	Etat             State     `json:"etat"`
	EtudiantID       int64     `json:"etudiantId"`
	EncadrantID      *int64    `json:"encadrantId,omitempty"`
	CommentaireRefus *string   `json:"commentaireRefus,omitempty"`
	RapportPath      *string   `json:"rapportPath,omitempty"`
	FiliereID        *int64    `json:"filiereId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	// Version is bumped by the store on every write.
	Version int64 `json:"version,omitempty"`
}

// Clone returns a deep copy of s.
func (s Stage) Clone() Stage {
	out := s
	out.EncadrantID = cloneInt(s.EncadrantID)
	out.FiliereID = cloneInt(s.FiliereID)
	out.CommentaireRefus = cloneString(s.CommentaireRefus)
	out.RapportPath = cloneString(s.RapportPath)
	return out
}

// Draft carries the fields a student supplies when creating a stage.
type Draft struct {
	Sujet       string `json:"sujet"`
	Description string `json:"description"`
	Entreprise  string `json:"entreprise"`
	Ville       string `json:"ville"`
	DateDebut   Date   `json:"dateDebut"`
	DateFin     Date   `json:"dateFin"`
	EncadrantID *int64 `json:"encadrantId,omitempty"`
}

// Patch carries an edit. Nil fields are left unchanged.
type Patch struct {
	Sujet       *string `json:"sujet,omitempty"`
	Description *string `json:"description,omitempty"`
	Entreprise  *string `json:"entreprise,omitempty"`
	Ville       *string `json:"ville,omitempty"`
	DateDebut   *Date   `json:"dateDebut,omitempty"`
	DateFin     *Date   `json:"dateFin,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Sujet == nil && p.Description == nil && p.Entreprise == nil &&
		p.Ville == nil && p.DateDebut == nil && p.DateFin == nil
}

// Actor is the user requesting an operation.
type Actor struct {
	ID   int64
	Role user.Role
}

// ActorFrom builds an Actor from a session user record.
func ActorFrom(rec user.Record) Actor {
	return Actor{ID: rec.ID, Role: rec.Role}
}

func (a Actor) owns(s Stage) bool {
	return a.Role == user.RoleEtudiant && a.ID == s.EtudiantID
}

func (a Actor) supervises(s Stage) bool {
	return a.Role == user.RoleEnseignant && s.EncadrantID != nil && *s.EncadrantID == a.ID
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
