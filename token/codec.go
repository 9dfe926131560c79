package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goStage/user"
)

// Claims is the decoded claims segment of a credential.
type Claims struct {
	Email string    `json:"email,omitempty"`
	Role  user.Role `json:"role"`
	jwt.RegisteredClaims
}

// ExpiresAtTime returns the expiry as a time value, or the zero time when the
// claim is missing.
func (c *Claims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

var unverified = jwt.NewParser()

// Decode parses the claims segment of raw without verifying its signature.
// Only the middle segment is read; the header and signature may be anything.
//
// Any structural deviation (segment count, base64url, JSON shape, missing role
// or exp) fails with ErrMalformed. An expired credential decodes successfully.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}
	payload, err := unverified.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: claims segment: %v", ErrMalformed, err)
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: claims segment: %v", ErrMalformed, err)
	}
	if err := validateShape(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// IsExpired reports whether now is at or past the credential expiry, compared
// at millisecond resolution. Nil claims are always expired.
func IsExpired(c *Claims, now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return true
	}
	return now.UnixMilli() >= c.ExpiresAt.Unix()*1000
}

// Check decodes raw and rejects it with ErrExpired when it is expired at now.
func Check(raw string, now time.Time) (*Claims, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if IsExpired(claims, now) {
		return claims, ErrExpired
	}
	return claims, nil
}

func validateShape(c *Claims) error {
	if strings.TrimSpace(string(c.Role)) == "" {
		return fmt.Errorf("%w: missing role claim", ErrMalformed)
	}
	if c.ExpiresAt == nil {
		return fmt.Errorf("%w: missing exp claim", ErrMalformed)
	}
	return nil
}
