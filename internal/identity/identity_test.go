package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/promptvault/internal/crypto/clientcrypto"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
)

const alice = model.Identity("rwlgt-iiaaa-aaaaa-aaaaa-cai")

func makeJWT(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

type fakeProvider struct {
	creds   Credentials
	err     error
	revoked []model.Identity
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Authenticate(context.Context) (Credentials, error) { return f.creds, f.err }

func (f *fakeProvider) Revoke(_ context.Context, c Credentials) error {
	f.revoked = append(f.revoked, c.Identity)
	return nil
}

func TestParseCredentials(t *testing.T) {
	t.Parallel()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	c, err := ParseCredentials(makeJWT(t, " RWLGT-iiaaa-aaaaa-aaaaa-cai", exp))
	require.NoError(t, err)
	require.Equal(t, alice, c.Identity)
	require.True(t, c.ExpiresAt.Equal(exp))

	_, err = ParseCredentials(makeJWT(t, model.Anonymous.String(), exp))
	require.Error(t, err)
	_, err = ParseCredentials(makeJWT(t, "bad subject!", exp))
	require.Error(t, err)
	_, err = ParseCredentials("not-a-jwt")
	require.Error(t, err)
}

func TestSession_LoginLogout(t *testing.T) {
	t.Parallel()
	tok := makeJWT(t, alice.String(), time.Now().Add(time.Hour))
	creds, err := ParseCredentials(tok)
	require.NoError(t, err)
	p := &fakeProvider{creds: creds}
	st := &MemStore{}
	s := NewSession(p, st, nil)

	require.Equal(t, model.Anonymous, s.Current())
	require.Empty(t, s.Token())

	id, err := s.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, alice, id)
	require.Equal(t, alice, s.Current())
	require.Equal(t, tok, s.Token())
	stored, err := st.Load()
	require.NoError(t, err)
	require.Equal(t, alice, stored.Identity)

	require.NoError(t, s.Logout(context.Background()))
	require.Equal(t, model.Anonymous, s.Current())
	require.Empty(t, s.Token())
	require.Equal(t, []model.Identity{alice}, p.revoked)
	_, err = st.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSession_CancelIsNotAnError(t *testing.T) {
	t.Parallel()
	s := NewSession(&fakeProvider{err: errs.ErrCancelled}, nil, nil)
	id, err := s.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.Anonymous, id)
}

func TestSession_ProviderFailureSurfaces(t *testing.T) {
	t.Parallel()
	boom := errors.New("provider down")
	s := NewSession(&fakeProvider{err: boom}, nil, nil)
	id, err := s.Login(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, model.Anonymous, id)
}

func TestSession_RejectsExpiredDelegation(t *testing.T) {
	t.Parallel()
	c := Credentials{Identity: alice, Token: "t", ExpiresAt: time.Now().Add(-time.Minute)}
	s := NewSession(&fakeProvider{creds: c}, nil, nil)
	_, err := s.Login(context.Background())
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)
	require.Equal(t, model.Anonymous, s.Current())
}

func TestSession_ExpiryDropsToAnonymous(t *testing.T) {
	t.Parallel()
	now := time.Now()
	c := Credentials{Identity: alice, Token: "t", ExpiresAt: now.Add(time.Minute)}
	s := NewSession(&fakeProvider{creds: c}, nil, nil)
	s.now = func() time.Time { return now }
	_, err := s.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, alice, s.Current())

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	require.Equal(t, model.Anonymous, s.Current())
	require.Empty(t, s.Token())
}

func TestSession_Restore(t *testing.T) {
	t.Parallel()
	tok := makeJWT(t, alice.String(), time.Now().Add(time.Hour))
	c, err := ParseCredentials(tok)
	require.NoError(t, err)

	st := &MemStore{}
	require.NoError(t, st.Save(c))
	s := NewSession(&fakeProvider{}, st, nil)
	require.Equal(t, alice, s.Restore())

	expired := &MemStore{}
	require.NoError(t, expired.Save(Credentials{Identity: alice, Token: "t", ExpiresAt: time.Now().Add(-time.Hour)}))
	s = NewSession(&fakeProvider{}, expired, nil)
	require.Equal(t, model.Anonymous, s.Restore())
	_, err = expired.Load()
	require.ErrorIs(t, err, ErrNoSession, "expired session must be cleared")
}

func TestFileStore_SealedRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	master, err := clientcrypto.Rand(clientcrypto.KeyLen)
	require.NoError(t, err)
	st := NewFileStore(dir, master)

	_, err = st.Load()
	require.ErrorIs(t, err, ErrNoSession)

	tok := makeJWT(t, alice.String(), time.Now().Add(time.Hour))
	c, err := ParseCredentials(tok)
	require.NoError(t, err)
	require.NoError(t, st.Save(c))

	raw, err := os.ReadFile(filepath.Join(dir, sessionFile))
	require.NoError(t, err)
	require.NotContains(t, string(raw), tok, "token must not be stored in clear")

	got, err := st.Load()
	require.NoError(t, err)
	require.Equal(t, tok, got.Token)

	other, _ := clientcrypto.Rand(clientcrypto.KeyLen)
	_, err = NewFileStore(dir, other).Load()
	require.Error(t, err)

	require.NoError(t, st.Clear())
	require.NoError(t, st.Clear())
	_, err = st.Load()
	require.ErrorIs(t, err, ErrNoSession)
}
