package token

import "errors"

var (
	// ErrMalformed is returned when a credential is not a three-segment token
	// whose claims segment decodes to an object carrying role and exp.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned by Check and Signer.Verify for well-formed
	// credentials past their expiry.
	ErrExpired = errors.New("expired token")
	// ErrRejected is returned by Signer.Verify when the signature, issuer, or
	// algorithm does not match the signer configuration.
	ErrRejected = errors.New("token rejected")
)
