package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/promptvault/internal/access"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/limiter"
	"github.com/and161185/promptvault/internal/metrics"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
	"github.com/and161185/promptvault/internal/viewstate"
)

// Session is the identity lifecycle the marketplace reacts to.
type Session interface {
	Current() model.Identity
	Restore() model.Identity
	Login(ctx context.Context) (model.Identity, error)
	Logout(ctx context.Context) error
}

// Deps are the collaborators of a Marketplace.
type Deps struct {
	Client             remote.Client
	Session            Session
	Onboarding         Onboarding
	Limiter            limiter.Limiter
	HydrateConcurrency int
	Metrics            metrics.MetricsCollector
	Log                *zap.Logger
}

// Marketplace is the application context: one session, one client and the
// view state they reconcile into.
type Marketplace struct {
	client     remote.Client
	session    Session
	onboarding Onboarding
	metrics    metrics.MetricsCollector
	log        *zap.Logger

	view     *viewstate.State
	profiles *ProfileCache
	loader   *Loader
	coord    *CoordinatorImpl

	enterMu sync.Mutex
	mu      sync.RWMutex
	stage   Stage
}

// NewMarketplace wires the marketplace. Call Start before use.
func NewMarketplace(d Deps) *Marketplace {
	m := d.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	mp := &Marketplace{
		client:     d.Client,
		session:    d.Session,
		onboarding: d.Onboarding,
		metrics:    m,
		log:        log,
		stage:      StageDone,
	}
	mp.view = viewstate.New(viewstate.WithDiscardHook(func(s viewstate.Slice) {
		m.RecordRefreshDiscarded(string(s))
	}))
	mp.profiles = NewProfileCache(d.Client)
	mp.loader = NewLoader(d.Client, mp.view, mp.profiles, d.Limiter, d.HydrateConcurrency, m, log.Named("loader"))
	mp.coord = NewCoordinator(d.Client, mp, mp.view, mp.loader, mp.profiles, m, log.Named("mutations"))
	return mp
}

// Current returns the identity of the session.
func (mp *Marketplace) Current() model.Identity { return mp.session.Current() }

// BrowseOnly reports whether onboarding for the current identity was abandoned or failed.
func (mp *Marketplace) BrowseOnly() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.stage == StageBrowseOnly
}

// Stage returns the terminal bootstrap stage of the current identity.
func (mp *Marketplace) Stage() Stage {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.stage
}

// View exposes the reconciled state for presentation.
func (mp *Marketplace) View() *viewstate.State { return mp.view }

// Mutations exposes the coordinator.
func (mp *Marketplace) Mutations() MutationCoordinator { return mp.coord }

// Start restores a persisted session and assembles its state. The returned
// error reports refreshes that failed; the marketplace is usable regardless.
func (mp *Marketplace) Start(ctx context.Context) error {
	return mp.enter(ctx, mp.session.Restore())
}

// Login authenticates interactively. A cancelled login leaves everything as it was.
func (mp *Marketplace) Login(ctx context.Context) (model.Identity, error) {
	before := mp.session.Current()
	who, err := mp.session.Login(ctx)
	if err != nil {
		return who, err
	}
	if who == before {
		return who, nil
	}
	_ = mp.enter(ctx, who)
	return who, nil
}

// Logout drops the identity and everything cached for it.
func (mp *Marketplace) Logout(ctx context.Context) error {
	err := mp.session.Logout(ctx)
	_ = mp.enter(ctx, model.Anonymous)
	return err
}

// enter discards the previous identity's state before anything is fetched for who.
func (mp *Marketplace) enter(ctx context.Context, who model.Identity) error {
	mp.enterMu.Lock()
	defer mp.enterMu.Unlock()

	sc := mp.view.Reset(who)
	mp.profiles.Reset()

	stage := StageDone
	if !who.IsAnonymous() {
		step := RunFlow(ctx, NewFlow(mp.client, mp.profiles, who, mp.log.Named("bootstrap")), mp.onboarding, mp.metrics)
		stage = step.Stage
		mp.view.ApplyProfile(mp.view.BeginIn(sc, viewstate.SliceProfile), step.Profile)
	}
	mp.mu.Lock()
	mp.stage = stage
	mp.mu.Unlock()

	return mp.loader.Assemble(ctx, sc)
}

// Refresh re-assembles the current identity's state.
func (mp *Marketplace) Refresh(ctx context.Context) error {
	return mp.loader.Assemble(ctx, mp.view.Scope())
}

// Item fetches one item and patches it into the state.
func (mp *Marketplace) Item(ctx context.Context, id model.ItemID) (model.Item, error) {
	return mp.loader.RefreshItem(ctx, mp.view.Scope(), id)
}

// Evaluate classifies an item for the current identity, fetching it if the
// state does not hold it.
func (mp *Marketplace) Evaluate(ctx context.Context, id model.ItemID) (model.Item, access.Verdict, error) {
	it, ok := mp.view.Item(id)
	if !ok {
		var err error
		if it, err = mp.Item(ctx, id); err != nil {
			return model.Item{}, access.Verdict{}, err
		}
	}
	return it, access.Evaluate(mp.Current(), it, mp.view.Purchased()), nil
}

// Content returns an item's content. Locked items fail without a ledger call;
// for the rest the ledger has the final word.
func (mp *Marketplace) Content(ctx context.Context, id model.ItemID) (string, error) {
	_, v, err := mp.Evaluate(ctx, id)
	if err != nil {
		return "", err
	}
	if !v.CanView {
		return "", fmt.Errorf("content of item %d: purchase required: %w", id, errs.ErrUnauthorized)
	}
	return value(mp.client.GetItemContent(ctx, id))
}

// Search runs a ledger search; category nil means any.
func (mp *Marketplace) Search(ctx context.Context, text string, category *model.Category) ([]model.Item, error) {
	return mp.loader.Search(ctx, mp.view.Scope(), text, category)
}

// Profile returns the ledger profile of who.
func (mp *Marketplace) Profile(ctx context.Context, who model.Identity) (model.Profile, error) {
	return mp.profiles.Get(ctx, who)
}

// Balance queries the external payment ledger for the current identity.
func (mp *Marketplace) Balance(ctx context.Context) (model.Amount, error) {
	who := mp.Current()
	if who.IsAnonymous() {
		return 0, errs.ErrNotAuthenticated
	}
	return value(mp.client.GetLedgerBalance(ctx, who))
}
