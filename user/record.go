package user

import "strconv"

// Record is the user profile carried by a session.
type Record struct {
	ID        int64  `json:"id"`
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FiliereID *int64 `json:"filiereId,omitempty"`
	Annee     *int   `json:"annee,omitempty"`
}

// Subject returns the id in the form used by credential subjects.
func (r Record) Subject() string {
	return strconv.FormatInt(r.ID, 10)
}

// FullName returns "Prenom Nom".
func (r Record) FullName() string {
	switch {
	case r.Prenom == "":
		return r.Nom
	case r.Nom == "":
		return r.Prenom
	default:
		return r.Prenom + " " + r.Nom
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.FiliereID != nil {
		v := *r.FiliereID
		out.FiliereID = &v
	}
	if r.Annee != nil {
		v := *r.Annee
		out.Annee = &v
	}
	return out
}
