package domain

import (
	"errors"
	"fmt"
)

// Error classes surfaced to the boundary. Every failure the core produces wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateIdentity = errors.New("login already registered")
	ErrAuthentication    = errors.New("authentication failed")
	ErrAuthorization     = errors.New("insufficient privilege")
	ErrResourceAbsent    = errors.New("resource not found")
)

var (
	// ErrInvalidCredentials covers both unknown login and wrong password.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrTokenMissing       = fmt.Errorf("%w: missing bearer token", ErrAuthentication)
	ErrTokenInvalid       = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrAuthentication)

	// ErrPrincipalNotFound is internal to the credential store and never reaches callers as-is.
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrRefreshNotFound   = errors.New("refresh token not found")
)
