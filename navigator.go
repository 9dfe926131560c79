package goStage

import (
	"context"
	"sync"
)

// Navigator moves the user interface to a path. Login, logout and expiry
// redirects go through it.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }

type nopNavigator struct{}

func (nopNavigator) Navigate(context.Context, string) {}

// RecordingNavigator keeps every path it was sent to.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (r *RecordingNavigator) Navigate(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

// Last returns the most recent path, or "" before any navigation.
func (r *RecordingNavigator) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func (r *RecordingNavigator) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}
