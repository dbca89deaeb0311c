package auth

import "errors"

var (
	// ErrInvalidCredentials is returned by login for an unknown email, a wrong
	// password or a deactivated account alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated means the request carries no usable identity.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden means the identity is known but lacks the required role or ownership.
	ErrForbidden = errors.New("insufficient privileges")
)

// Token errors. Callers outside this package only ever see them wrapped in
// ErrUnauthenticated.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformedSubject = errors.New("malformed token subject")
)
