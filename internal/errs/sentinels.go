// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across the session, client and coordinator layers.
var (
	// ErrNotAuthenticated indicates an operation that needs a signed-in identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates an authorship or access violation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates a malformed request (e.g., empty title).
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy indicates the same operation on the same item is already in flight.
	ErrBusy = errors.New("operation already in flight")

	// ErrRemoteUnavailable indicates a transport or network failure.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrCancelled indicates the user abandoned an interactive step.
	ErrCancelled = errors.New("cancelled")

	// ErrAlreadyExists indicates a duplicate (e.g., profile already registered, item already liked).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRejected indicates a ledger rejection that matched no known category.
	ErrRejected = errors.New("rejected by ledger")
)
