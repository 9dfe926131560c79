package stage

// State is a lifecycle state.
type State string

const (
	Brouillon           State = "BROUILLON"
	EnAttenteValidation State = "EN_ATTENTE_VALIDATION"
	Valide              State = "VALIDE"
	Refuse              State = "REFUSE"
	EnCours             State = "EN_COURS"
	Termine             State = "TERMINE"
	Soutenu             State = "SOUTENU"
	Annule              State = "ANNULE"
)

// States lists every state in lifecycle order.
func States() []State {
	return []State{Brouillon, EnAttenteValidation, Valide, Refuse, EnCours, Termine, Soutenu, Annule}
}

func (s State) Valid() bool {
	switch s {
	case Brouillon, EnAttenteValidation, Valide, Refuse, EnCours, Termine, Soutenu, Annule:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case Termine, Soutenu, Annule:
		return true
	default:
		return false
	}
}

// Editable reports whether content edits and deletion are allowed in s.
func (s State) Editable() bool {
	return s == Brouillon || s == Refuse
}

func (s State) String() string {
	return string(s)
}
