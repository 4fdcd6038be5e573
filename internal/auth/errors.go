package auth

import "errors"

// Sentinel errors for the login flow.
var (
	ErrValidation     = errors.New("invalid login input")
	ErrAuthentication = errors.New("authentication failed")
	ErrProfileFetch   = errors.New("failed to get user information")
)
