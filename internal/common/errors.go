// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal           = errors.New("internal error")
	ErrorInvalidCredentials = errors.New("incorrect email/phone or password")
	ErrorInactiveUser       = errors.New("inactive user")
	ErrorForbidden          = errors.New("access to this session is forbidden")
	ErrorInvalidArgument    = errors.New("invalid argument")
	ErrorValidation         = errors.New("validation error")
	ErrorUnavailable        = errors.New("feature unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Relay errors.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
