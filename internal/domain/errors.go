package domain

import "errors"

// Error taxonomy for the brokering core. Handlers map these to HTTP
// statuses; usecases wrap them with context via fmt.Errorf and %w.
var (
	// ErrInvalidInput covers malformed payloads and field constraint
	// violations (400).
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists is returned when an organization name is taken (409).
	ErrAlreadyExists = errors.New("organization already exists")

	// ErrIdempotencyConflict is returned when an idempotency key has
	// already been claimed within its TTL (409).
	ErrIdempotencyConflict = errors.New("idempotency key already used")

	// ErrInvalidCredentials covers both an unknown organization and a
	// wrong API key or owner mismatch; callers must not be able to tell
	// which (401).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is used where disclosure is safe, e.g. unknown user (404).
	ErrNotFound = errors.New("not found")

	// ErrNotValidated signals the organization has not completed trust
	// validation (412).
	ErrNotValidated = errors.New("organization not validated")

	// ErrInvalidRole signals an unknown role type (400).
	ErrInvalidRole = errors.New("invalid role type")

	// ErrRateLimitExceeded signals the fixed-window limit was hit (429).
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrUpstream signals a cloud provider call failed; the caller may
	// retry, this core does not (502).
	ErrUpstream = errors.New("upstream provider error")
)
