package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
)

// Session holds the current identity. The zero identity is anonymous.
// Session satisfies remote.TokenSource.
type Session struct {
	provider Provider
	store    Store
	log      *zap.Logger
	now      func() time.Time

	loginMu sync.Mutex // one interactive challenge at a time

	mu  sync.RWMutex
	cur Credentials
}

// NewSession creates an anonymous session. store may be nil.
func NewSession(p Provider, store Store, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{provider: p, store: store, log: log, now: time.Now}
}

// Current returns the active identity, or model.Anonymous.
func (s *Session) Current() model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cur.Valid(s.now()) {
		return model.Anonymous
	}
	return s.cur.Identity
}

// Token returns the delegation token of the active identity, or "" when anonymous.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cur.Valid(s.now()) {
		return ""
	}
	return s.cur.Token
}

// ExpiresAt returns when the active delegation lapses; zero when anonymous or unbounded.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.ExpiresAt
}

// Restore adopts a persisted, unexpired delegation. Anything unusable is cleared.
func (s *Session) Restore() model.Identity {
	if s.store == nil {
		return s.Current()
	}
	c, err := s.store.Load()
	switch {
	case errors.Is(err, ErrNoSession):
		return s.Current()
	case err != nil:
		s.log.Warn("stored session unreadable", zap.Error(err))
		_ = s.store.Clear()
		return s.Current()
	case !c.Valid(s.now()):
		s.log.Info("stored session expired", zap.String("identity", c.Identity.String()))
		_ = s.store.Clear()
		return s.Current()
	}
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
	return c.Identity
}

// Login runs the provider challenge and adopts the resulting identity.
// A cancelled challenge is not an error: the current identity is returned unchanged.
func (s *Session) Login(ctx context.Context) (model.Identity, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	c, err := s.provider.Authenticate(ctx)
	if errors.Is(err, errs.ErrCancelled) || errors.Is(err, context.Canceled) {
		s.log.Info("login cancelled")
		return s.Current(), nil
	}
	if err != nil {
		return s.Current(), fmt.Errorf("login: %w", err)
	}
	if !c.Valid(s.now()) {
		return s.Current(), fmt.Errorf("login: %w: delegation expired or anonymous", errs.ErrNotAuthenticated)
	}

	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(c); err != nil {
			s.log.Warn("persist session", zap.Error(err))
		}
	}
	s.log.Info("logged in", zap.String("identity", c.Identity.String()), zap.Time("expires_at", c.ExpiresAt))
	return c.Identity, nil
}

// Logout revokes the delegation and resets to anonymous. The reset happens even
// if revocation or clearing the store fails; those failures are returned.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	prev := s.cur
	s.cur = Credentials{}
	s.mu.Unlock()

	var errList []error
	if prev.Token != "" && s.provider != nil {
		if err := s.provider.Revoke(ctx, prev); err != nil {
			s.log.Warn("revoke delegation", zap.Error(err))
			errList = append(errList, fmt.Errorf("revoke: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			errList = append(errList, fmt.Errorf("clear session: %w", err))
		}
	}
	s.log.Info("logged out", zap.String("identity", prev.Identity.String()))
	return errors.Join(errList...)
}
