package errs

import "strings"

// RemoteError carries the ledger's error message verbatim together with its classified kind.
type RemoteError struct {
	Kind    error
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap exposes the sentinel so callers can use errors.Is.
func (e *RemoteError) Unwrap() error { return e.Kind }

// known ledger messages, matched case-insensitively by substring; first match wins.
var remoteKinds = []struct {
	needle string
	kind   error
}{
	{"authentication required", ErrNotAuthenticated},
	{"anonymous", ErrNotAuthenticated},
	{"not found", ErrNotFound},
	{"already purchased", ErrUnauthorized},
	{"cannot purchase your own", ErrUnauthorized},
	{"cannot rate your own", ErrUnauthorized},
	{"must purchase", ErrUnauthorized},
	{"access denied", ErrUnauthorized},
	{"not authorized", ErrUnauthorized},
	{"unauthorized", ErrUnauthorized},
	{"already", ErrAlreadyExists},
	{"was not liked", ErrAlreadyExists},
	{"cannot be empty", ErrInvalidInput},
	{"cannot exceed", ErrInvalidInput},
	{"cannot have more than", ErrInvalidInput},
	{"must be between", ErrInvalidInput},
	{"invalid", ErrInvalidInput},
	{"too long", ErrInvalidInput},
	{"too many", ErrInvalidInput},
	{"insufficient", ErrRejected},
}

// FromRemote classifies a ledger error message. An empty message still yields an error.
func FromRemote(msg string) *RemoteError {
	if msg == "" {
		return &RemoteError{Kind: ErrRejected, Message: ErrRejected.Error()}
	}
	lower := strings.ToLower(msg)
	for _, k := range remoteKinds {
		if strings.Contains(lower, k.needle) {
			return &RemoteError{Kind: k.kind, Message: msg}
		}
	}
	return &RemoteError{Kind: ErrRejected, Message: msg}
}
