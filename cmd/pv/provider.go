package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/identity"
)

// tokenProvider completes the login challenge with a delegation token issued
// by the identity provider, taken from PV_TOKEN or pasted at the prompt.
type tokenProvider struct {
	term  *terminal
	token string
}

var _ identity.Provider = tokenProvider{}

// Authenticate returns errs.ErrCancelled when no token is supplied.
func (p tokenProvider) Authenticate(ctx context.Context) (identity.Credentials, error) {
	tok := strings.TrimSpace(p.token)
	if tok == "" {
		s, err := p.term.readSecret(ctx, "Delegation token")
		if err != nil || strings.TrimSpace(s) == "" {
			return identity.Credentials{}, errs.ErrCancelled
		}
		tok = strings.TrimSpace(s)
	}
	c, err := identity.ParseCredentials(tok)
	if err != nil {
		return identity.Credentials{}, fmt.Errorf("delegation token: %w", err)
	}
	return c, nil
}

// Revoke is a no-op: delegations expire on their own and nothing is held server-side.
func (tokenProvider) Revoke(context.Context, identity.Credentials) error { return nil }
