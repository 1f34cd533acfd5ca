package errs

import (
	"errors"
	"testing"
)

func TestFromRemote_Classifies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want error
	}{
		{"Prompt not found", ErrNotFound},
		{"User not found. Please create a user first.", ErrNotFound},
		{"Prompt already purchased", ErrUnauthorized},
		{"Cannot purchase your own prompt", ErrUnauthorized},
		{"Cannot rate your own prompt", ErrUnauthorized},
		{"Must purchase prompt to rate it", ErrUnauthorized},
		{"Access denied. Purchase required.", ErrUnauthorized},
		{"Not authorized to update this prompt", ErrUnauthorized},
		{"Prompt already liked", ErrAlreadyExists},
		{"Prompt was not liked", ErrAlreadyExists},
		{"User already exists", ErrAlreadyExists},
		{"Title cannot be empty", ErrInvalidInput},
		{"Rating must be between 1 and 5", ErrInvalidInput},
		{"Authentication required", ErrNotAuthenticated},
		{"something odd", ErrRejected},
		{"", ErrRejected},
	}
	for _, c := range cases {
		err := FromRemote(c.msg)
		if !errors.Is(err, c.want) {
			t.Fatalf("%q: kind=%v, want %v", c.msg, err.Kind, c.want)
		}
		if c.msg != "" && err.Error() != c.msg {
			t.Fatalf("message must be verbatim: got %q want %q", err.Error(), c.msg)
		}
	}
}
