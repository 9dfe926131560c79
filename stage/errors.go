package stage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIllegalTransition is returned when no table entry leads from the
	// current state to the requested one.
	ErrIllegalTransition = errors.New("illegal stage transition")
	// ErrForbidden is returned when the actor's role or relation to the stage
	// does not permit the operation.
	ErrForbidden = errors.New("stage operation forbidden")
	// ErrValidationFailed is returned when a precondition field is missing or
	// invalid.
	ErrValidationFailed = errors.New("stage validation failed")

	// ErrNotEditable is returned by Edit outside BROUILLON and REFUSE.
	ErrNotEditable = fmt.Errorf("%w: stage not editable in this state", ErrIllegalTransition)
	// ErrNotDeletable is returned by CheckDelete outside BROUILLON and REFUSE.
	ErrNotDeletable = fmt.Errorf("%w: stage not deletable in this state", ErrIllegalTransition)
)

// FieldError names one failed precondition.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every failed precondition of one operation. It
// matches ErrValidationFailed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func invalid(field, rule string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule}}}
}

func illegal(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

func notAllowedIn(op string, s State) error {
	return fmt.Errorf("%w: %s not allowed in %s", ErrIllegalTransition, op, s)
}

func forbidden(op string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, op)
}
