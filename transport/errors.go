package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrUnreachable  = errors.New("server unreachable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("request rejected by validation")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource conflict")
	ErrServer       = errors.New("server error")
)

// StatusError is a non-2xx response. It matches the category sentinel
// returned by Classify for its status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return Classify(e.Status) == target
}

// Classify maps a status to its category sentinel. 2xx statuses return nil.
func Classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 0:
		return ErrUnreachable
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	default:
		return ErrServer
	}
}

const maxErrorBody = 64 << 10

// FromResponse returns nil for 2xx responses and a *StatusError otherwise.
// The body of a failed response is consumed to read its message.
func FromResponse(resp *http.Response) error {
	if resp == nil {
		return ErrUnreachable
	}
	if Classify(resp.StatusCode) == nil {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Status: resp.StatusCode, Message: errorMessage(data)}
}

// Unreachable wraps a round-trip failure that produced no response.
func Unreachable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnreachable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
