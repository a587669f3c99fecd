package auth

import (
	"errors"
	"fmt"
)

// ErrAuth matches every authentication failure returned by this package.
var ErrAuth = errors.New("todo: unauthorized")

var (
	// ErrMissingToken is returned when no bearer token was supplied.
	ErrMissingToken = fmt.Errorf("%w: missing token", ErrAuth)

	// ErrMalformedToken is returned when the token cannot be parsed.
	ErrMalformedToken = fmt.Errorf("%w: malformed token", ErrAuth)

	// ErrInvalidSignature is returned when the signature or algorithm is rejected.
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrAuth)

	// ErrExpired is returned when the token is past exp or before nbf.
	ErrExpired = fmt.Errorf("%w: token expired or not yet valid", ErrAuth)

	// ErrKeyNotFound is returned when no key in the key set matches the token's kid.
	ErrKeyNotFound = fmt.Errorf("%w: signing key not found", ErrAuth)

	// ErrInvalidClaims is returned for a missing subject, exp, issuer or audience mismatch.
	ErrInvalidClaims = fmt.Errorf("%w: invalid claims", ErrAuth)

	// ErrKeySetUnavailable is returned when the key set endpoint cannot be read.
	ErrKeySetUnavailable = fmt.Errorf("%w: key set unavailable", ErrAuth)
)
