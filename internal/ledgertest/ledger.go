// Package ledgertest provides an in-memory ledger replica served over gRPC,
// for tests and local development of the marketplace client.
//
// It reproduces the ledger's observable contract (envelopes, verbatim error
// strings, ownership and purchase rules) but none of its durability.
package ledgertest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/promptvault/internal/convert"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
	"github.com/and161185/promptvault/internal/wire"
)

// Call records one served RPC.
type Call struct {
	Method         string
	Caller         model.Identity
	IdempotencyKey string
}

// Ledger is a LedgerServer backed by maps.
type Ledger struct {
	signKey []byte
	now     func() time.Time

	mu        sync.Mutex
	nextID    model.ItemID
	profiles  map[model.Identity]model.Profile
	items     map[model.ItemID]model.Item
	purchases map[model.Identity][]model.ItemID
	likes     map[model.Identity]map[model.ItemID]bool
	ratings   map[model.ItemID]map[model.Identity]model.Rating
	balances  map[model.Identity]model.Amount
	failNext  map[string]string
	calls     []Call
}

var _ remote.LedgerServer = (*Ledger)(nil)

// New creates an empty ledger that accepts HS256 delegation tokens signed with signKey.
func New(signKey []byte) *Ledger {
	return &Ledger{
		signKey:   signKey,
		now:       time.Now,
		nextID:    1,
		profiles:  map[model.Identity]model.Profile{},
		items:     map[model.ItemID]model.Item{},
		purchases: map[model.Identity][]model.ItemID{},
		likes:     map[model.Identity]map[model.ItemID]bool{},
		ratings:   map[model.ItemID]map[model.Identity]model.Rating{},
		balances:  map[model.Identity]model.Amount{},
		failNext:  map[string]string{},
	}
}

// Issue mints a delegation token for id valid for ttl.
func (l *Ledger) Issue(id model.Identity, ttl time.Duration) (string, error) {
	now := l.now()
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.signKey)
}

// Fund credits who's ledger balance.
func (l *Ledger) Fund(who model.Identity, amt model.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[who] += amt
}

// SeedProfile stores p as if it had been registered.
func (l *Ledger) SeedProfile(p model.Profile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = l.now()
	}
	l.profiles[p.Identity] = p
}

// SeedItem stores it under a fresh id and returns the id.
func (l *Ledger) SeedItem(it model.Item) model.ItemID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if it.ID == 0 || it.ID < l.nextID {
		it.ID = l.nextID
	}
	l.nextID = it.ID + 1
	now := l.now()
	it.CreatedAt, it.UpdatedAt = now, now
	l.items[it.ID] = it.Clone()
	return it.ID
}

// SeedPurchase records a purchase without moving funds.
func (l *Ledger) SeedPurchase(who model.Identity, id model.ItemID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purchases[who] = append(l.purchases[who], id)
}

// FailNext makes the next call of method return a failed envelope with msg.
func (l *Ledger) FailNext(method, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext[method] = msg
}

// Calls returns the RPCs served so far, oldest first.
func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// CallsTo returns the recorded calls of one method.
func (l *Ledger) CallsTo(method string) []Call {
	var out []Call
	for _, c := range l.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// caller resolves the identity behind the bearer token; no token is anonymous.
func (l *Ledger) caller(ctx context.Context) (model.Identity, error) {
	tok, err := remote.BearerFromContext(ctx)
	if err != nil {
		return model.Anonymous, nil
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return l.signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return "", status.Error(codes.Unauthenticated, "invalid delegation")
	}
	id, err := model.ParseIdentity(claims.Subject)
	if err != nil {
		return "", status.Error(codes.Unauthenticated, "bad subject")
	}
	return id, nil
}

// begin resolves the caller, records the call and consumes a scheduled failure.
// Callers must hold l.mu released; begin returns with it held on success.
func (l *Ledger) begin(ctx context.Context, method string) (model.Identity, string, error) {
	who, err := l.caller(ctx)
	if err != nil {
		return "", "", err
	}
	l.mu.Lock()
	l.calls = append(l.calls, Call{Method: method, Caller: who, IdempotencyKey: remote.IdempotencyKeyFromContext(ctx)})
	msg, fail := l.failNext[method]
	if fail {
		delete(l.failNext, method)
		return who, msg, nil
	}
	return who, "", nil
}

func (l *Ledger) hasPurchasedLocked(who model.Identity, id model.ItemID) bool {
	for _, p := range l.purchases[who] {
		if p == id {
			return true
		}
	}
	return false
}

// viewLocked returns it with content withheld unless who may read it.
func (l *Ledger) viewLocked(who model.Identity, it model.Item) model.Item {
	it = it.Clone()
	if !it.IsPublic && it.Author != who && !l.hasPurchasedLocked(who, it.ID) {
		it.Content = ""
	}
	return it
}

func (l *Ledger) toWireLocked(who model.Identity, items []model.Item) ([]wire.Item, error) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	out := make([]wire.Item, 0, len(items))
	for _, it := range items {
		w, err := convert.ToWireItem(l.viewLocked(who, it))
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode item: %v", err)
		}
		out = append(out, w)
	}
	return out, nil
}

func requireCaller(who model.Identity) string {
	if who.IsAnonymous() {
		return "Authentication required"
	}
	return ""
}

func trimmed(s string) bool { return strings.TrimSpace(s) == "" }
