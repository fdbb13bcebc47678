// Package common defines shared sentinel errors used across the client and
// server layers of userkeeper. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound         = errors.New("not found")
	ErrorUniqueViolation  = errors.New("unique constraint violation")
	ErrorStoreUnavailable = errors.New("store unavailable")

	// Credential hashing errors.
	ErrorHashingUnavailable = errors.New("hashing unavailable")

	// Registration outcomes.
	ErrorEmailAlreadyRegistered = errors.New("email already registered")
	ErrorRegistrationFailed     = errors.New("registration failed")
	ErrorProfileStorageFailed   = errors.New("profile picture storage failed")

	// Boundary errors.
	ErrorValidation = errors.New("validation error")
)
