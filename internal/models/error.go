package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login decision errors
	ErrValidation         = errors.New("both fields are required")
	ErrInjectionDetected  = errors.New("sql injection detected")
	ErrBadCaptcha         = errors.New("invalid captcha response")
	ErrSessionBlocked     = errors.New("session is blocked")
	ErrRateLimitExceeded  = errors.New("too many login attempts")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid verification code")
)
