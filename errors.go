package goStage

import (
	"errors"

	"github.com/MrEthical07/goStage/session"
	"github.com/MrEthical07/goStage/stage"
	"github.com/MrEthical07/goStage/token"
	"github.com/MrEthical07/goStage/transport"
)

var (
	// ErrInvalidCredentialResponse is returned when a successful login response
	// carries no credential, or one that does not decode or is already expired.
	ErrInvalidCredentialResponse = errors.New("invalid credential response")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStoreRequired is returned by Build for an interactive client without a store.
	ErrStoreRequired = errors.New("interactive client requires a session store")
	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("client closed")
)

// Re-exported from the leaf packages so callers can match on goStage alone.
var (
	ErrMalformedToken    = token.ErrMalformed
	ErrExpiredToken      = token.ErrExpired
	ErrStoreUnavailable  = session.ErrUnavailable
	ErrUnreachable       = transport.ErrUnreachable
	ErrUnauthorized      = transport.ErrUnauthorized
	ErrForbidden         = transport.ErrForbidden
	ErrValidation        = transport.ErrValidation
	ErrIllegalTransition = stage.ErrIllegalTransition
	ErrTransitionDenied  = stage.ErrForbidden
	ErrValidationFailed  = stage.ErrValidationFailed
	ErrStageNotEditable  = stage.ErrNotEditable
	ErrStageNotDeletable = stage.ErrNotDeletable
)
