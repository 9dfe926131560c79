package repository

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/user"
)

// Account is a user record plus its credential hash.
type Account struct {
	Record       user.Record
	PasswordHash string
	CreatedAt    time.Time
}

type Users interface {
	// Create stores acc with a new id. The email is compared case-insensitively.
	Create(ctx context.Context, acc Account) (Account, error)
	ByEmail(ctx context.Context, email string) (Account, error)
	ByID(ctx context.Context, id int64) (Account, error)
}

// Filter narrows a stage listing. Zero fields match everything; set fields
// are combined with AND.
type Filter struct {
	EtudiantID  *int64
	EncadrantID *int64
	FiliereID   *int64
	Etats       []stage.State
	// Query matches sujet, description, entreprise or ville, case-insensitively.
	Query string
}

type Stages interface {
	// Create stores st with a new id.
	Create(ctx context.Context, st stage.Stage) (stage.Stage, error)
	Get(ctx context.Context, id int64) (stage.Stage, error)
	List(ctx context.Context, f Filter) ([]stage.Stage, error)
	// Update replaces the stored stage next.ID if it is still at version and
	// returns it with the version bumped. Otherwise it fails with ErrConflict.
	Update(ctx context.Context, next stage.Stage, version int64) (stage.Stage, error)
	// Delete removes stage id if it is still at version.
	Delete(ctx context.Context, id int64, version int64) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (f Filter) matches(st stage.Stage) bool {
	if f.EtudiantID != nil && st.EtudiantID != *f.EtudiantID {
		return false
	}
	if f.EncadrantID != nil && (st.EncadrantID == nil || *st.EncadrantID != *f.EncadrantID) {
		return false
	}
	if f.FiliereID != nil && (st.FiliereID == nil || *st.FiliereID != *f.FiliereID) {
		return false
	}
	if len(f.Etats) > 0 {
		found := false
		for _, e := range f.Etats {
			if st.Etat == e {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		for _, field := range []string{st.Sujet, st.Description, st.Entreprise, st.Ville} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
	return true
}
