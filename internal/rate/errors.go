package rate

import "errors"

var (
	// ErrRateLimited means the login budget of the window is used up.
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)
