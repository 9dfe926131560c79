package session

import "errors"

// ErrUnavailable wraps failures of the underlying key-value backend.
var ErrUnavailable = errors.New("session store unavailable")
