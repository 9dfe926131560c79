package permission

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrFrozen          = errors.New("permission: registry frozen")
	ErrEmptyAction     = errors.New("permission: empty action name")
	ErrDuplicateAction = errors.New("permission: action already registered")
	ErrTooManyActions  = errors.New("permission: more than 64 actions")
	ErrUnknownAction   = errors.New("permission: unknown action")
	ErrUnknownRole     = errors.New("permission: unknown role")
)

// Registry assigns each action name a bit, in registration order.
type Registry struct {
	mu     sync.RWMutex
	bits   map[string]int
	names  []string
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{bits: make(map[string]int)}
}

// Register adds actions in order. It stops at the first invalid name; the
// names before it stay registered.
func (r *Registry) Register(actions ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	for _, name := range actions {
		switch {
		case name == "":
			return ErrEmptyAction
		case r.has(name):
			return fmt.Errorf("%w: %q", ErrDuplicateAction, name)
		case len(r.names) == maxBits:
			return ErrTooManyActions
		}
		r.bits[name] = len(r.names)
		r.names = append(r.names, name)
	}
	return nil
}

func (r *Registry) has(name string) bool {
	_, ok := r.bits[name]
	return ok
}

func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.bits[name]
	return bit, ok
}

func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.names) {
		return "", false
	}
	return r.names[bit], true
}

// Mask builds the mask holding every named action.
func (r *Registry) Mask(actions ...string) (Mask64, error) {
	var m Mask64
	for _, name := range actions {
		bit, ok := r.Bit(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
		}
		m = m.With(bit)
	}
	return m, nil
}

// Freeze rejects later registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
