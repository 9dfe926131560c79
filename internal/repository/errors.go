package repository

import "errors"

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when the stored state differs from the state the
	// caller read before computing its update.
	ErrConflict   = errors.New("repository: concurrent update")
	ErrEmailTaken = errors.New("repository: email already registered")
)
