// Package identity owns the current caller identity and its login/logout transitions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/promptvault/internal/model"
)

// Credentials is a delegation issued by the external identity provider.
type Credentials struct {
	Identity  model.Identity
	Token     string
	ExpiresAt time.Time // zero means no expiry
}

// Valid reports whether c names a non-anonymous identity and is unexpired at now.
func (c Credentials) Valid(now time.Time) bool {
	if c.Identity.IsAnonymous() || c.Token == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// ParseCredentials reads identity and expiry from a delegation token.
// The signature is not checked here; the ledger verifies it on every call.
func ParseCredentials(token string) (Credentials, error) {
	var claims jwt.RegisteredClaims
	p := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := p.ParseUnverified(token, &claims); err != nil {
		return Credentials{}, fmt.Errorf("parse delegation: %w", err)
	}
	id, err := model.ParseIdentity(claims.Subject)
	if err != nil {
		return Credentials{}, fmt.Errorf("delegation subject: %w", err)
	}
	if id.IsAnonymous() {
		return Credentials{}, errors.New("delegation for anonymous identity")
	}
	c := Credentials{Identity: id, Token: token}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c, nil
}

// Provider runs the external interactive challenge.
type Provider interface {
	// Authenticate blocks until the challenge completes. It returns
	// errs.ErrCancelled when the user abandons it.
	Authenticate(ctx context.Context) (Credentials, error)
	// Revoke invalidates c with the provider, if it supports that.
	Revoke(ctx context.Context, c Credentials) error
}

// Store persists credentials between process runs.
type Store interface {
	Load() (Credentials, error)
	Save(c Credentials) error
	Clear() error
}

// ErrNoSession is returned by Store.Load when nothing is persisted.
var ErrNoSession = errors.New("no stored session")
