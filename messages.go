package goStage

import (
	"errors"

	"github.com/MrEthical07/goStage/transport"
)

// LoginCategory is the coarse failure class shown to the user.
type LoginCategory uint8

const (
	CategoryGeneric LoginCategory = iota
	CategoryUnreachable
	CategoryBadCredentials
	CategoryValidation
)

func (c LoginCategory) String() string {
	switch c {
	case CategoryUnreachable:
		return "unreachable"
	case CategoryBadCredentials:
		return "bad-credentials"
	case CategoryValidation:
		return "validation"
	default:
		return "generic"
	}
}

const (
	MessageUnreachable    = "Impossible de se connecter au serveur. Vérifiez votre connexion."
	MessageBadCredentials = "Email ou mot de passe incorrect."
	MessageValidation     = "Données invalides. Vérifiez vos informations."
	MessageGeneric        = "Erreur de connexion. Veuillez réessayer."
)

// Message returns the user-facing text of c.
func (c LoginCategory) Message() string {
	switch c {
	case CategoryUnreachable:
		return MessageUnreachable
	case CategoryBadCredentials:
		return MessageBadCredentials
	case CategoryValidation:
		return MessageValidation
	default:
		return MessageGeneric
	}
}

// LoginError is returned by Login and Register. Error returns only the
// user-facing message; the cause stays reachable through errors.Is/As.
type LoginError struct {
	Category LoginCategory
	Err      error
}

func (e *LoginError) Error() string {
	return e.Category.Message()
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Categorize maps a transport failure onto a LoginCategory.
func Categorize(err error) LoginCategory {
	switch {
	case errors.Is(err, transport.ErrUnreachable):
		return CategoryUnreachable
	case errors.Is(err, transport.ErrUnauthorized), errors.Is(err, transport.ErrForbidden):
		return CategoryBadCredentials
	case errors.Is(err, transport.ErrValidation):
		return CategoryValidation
	default:
		return CategoryGeneric
	}
}

func newLoginError(err error) *LoginError {
	return &LoginError{Category: Categorize(err), Err: err}
}
