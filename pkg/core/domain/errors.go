package domain

import "errors"

var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrSlugConflict is returned when a slug is already taken in either partition.
	ErrSlugConflict = errors.New("slug already exists")

	// ErrNotFound is returned when a link or account does not exist, or is not
	// owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when an owner-scoped call has no verified owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal wraps storage and downstream failures.
	ErrInternal = errors.New("internal error")

	// ErrQuotaExceeded is returned when an anonymous client used up its shortens.
	ErrQuotaExceeded = errors.New("anonymous usage limit reached")

	// ErrEmailTaken is returned on signup with a registered email.
	ErrEmailTaken = errors.New("email already exists")

	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
