package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/promptvault/internal/limiter"
	"github.com/and161185/promptvault/internal/metrics"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
	"github.com/and161185/promptvault/internal/viewstate"
)

// Loader runs the queries that populate ViewState. Every refresh is stamped
// within a scope, so results for a previous identity are never applied.
// A failed query is logged and leaves its slice unchanged.
type Loader struct {
	client      remote.Client
	view        *viewstate.State
	profiles    *ProfileCache
	lim         limiter.Limiter
	concurrency int
	metrics     metrics.MetricsCollector
	log         *zap.Logger
}

// NewLoader constructs a Loader. concurrency bounds purchase hydration fan-out.
func NewLoader(client remote.Client, view *viewstate.State, profiles *ProfileCache, lim limiter.Limiter, concurrency int, m metrics.MetricsCollector, log *zap.Logger) *Loader {
	if lim == nil {
		lim = limiter.Unlimited{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{client: client, view: view, profiles: profiles, lim: lim, concurrency: concurrency, metrics: m, log: log}
}

func (l *Loader) failed(sc viewstate.Scope, slice viewstate.Slice, err error) error {
	l.metrics.RecordRefreshFailed(string(slice))
	l.log.Warn("refresh failed",
		zap.String("slice", string(slice)),
		zap.String("identity", sc.Identity.String()),
		zap.Error(err),
	)
	return fmt.Errorf("refresh %s: %w", slice, err)
}

// Assemble populates the state for sc: public items always, and for an
// authenticated identity also its authored items and purchases.
func (l *Loader) Assemble(ctx context.Context, sc viewstate.Scope) error {
	g, gctx := errgroup.WithContext(ctx)
	var errPublic, errMine, errPurchased error
	g.Go(func() error { errPublic = l.RefreshPublic(gctx, sc); return nil })
	if !sc.Identity.IsAnonymous() {
		g.Go(func() error { errMine = l.RefreshMine(gctx, sc); return nil })
		g.Go(func() error { errPurchased = l.RefreshPurchased(gctx, sc); return nil })
	}
	_ = g.Wait()
	return errors.Join(errPublic, errMine, errPurchased)
}

// RefreshPublic reloads the public item list.
func (l *Loader) RefreshPublic(ctx context.Context, sc viewstate.Scope) error {
	t := l.view.BeginIn(sc, viewstate.SlicePublic)
	items, err := value(l.client.ListPublicItems(ctx))
	if err != nil {
		return l.failed(sc, viewstate.SlicePublic, err)
	}
	l.view.ApplyList(t, items)
	return nil
}

// RefreshMine reloads the items authored by the scope's identity.
func (l *Loader) RefreshMine(ctx context.Context, sc viewstate.Scope) error {
	if sc.Identity.IsAnonymous() {
		return nil
	}
	t := l.view.BeginIn(sc, viewstate.SliceMine)
	items, err := value(l.client.ListItemsByAuthor(ctx, sc.Identity))
	if err != nil {
		return l.failed(sc, viewstate.SliceMine, err)
	}
	l.view.ApplyList(t, items)
	return nil
}

// RefreshPurchased reloads the authoritative purchase-id set and hydrates each
// id into a full item. An id whose item cannot be fetched is skipped.
func (l *Loader) RefreshPurchased(ctx context.Context, sc viewstate.Scope) error {
	if sc.Identity.IsAnonymous() {
		return nil
	}
	t := l.view.BeginIn(sc, viewstate.SlicePurchased)
	ids, err := value(l.client.ListPurchaseIDs(ctx, sc.Identity))
	if err != nil {
		return l.failed(sc, viewstate.SlicePurchased, err)
	}
	hydrated := l.hydrate(ctx, sc, ids)
	l.view.ApplyPurchased(t, ids, hydrated)
	return nil
}

func (l *Loader) hydrate(ctx context.Context, sc viewstate.Scope, ids []model.ItemID) []model.Item {
	slots := make([]*model.Item, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := l.lim.Wait(gctx); err != nil {
				l.skip(sc, id, err)
				return nil
			}
			it, err := value(l.client.GetItem(gctx, id))
			if err != nil {
				l.skip(sc, id, err)
				return nil
			}
			slots[i] = &it
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Item, 0, len(ids))
	for _, it := range slots {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

func (l *Loader) skip(sc viewstate.Scope, id model.ItemID, err error) {
	l.metrics.RecordHydrationSkipped()
	l.log.Warn("purchase hydration skipped",
		zap.Uint64("item_id", uint64(id)),
		zap.String("identity", sc.Identity.String()),
		zap.Error(err),
	)
}

// RefreshItem fetches one item and patches it into every list that holds it.
func (l *Loader) RefreshItem(ctx context.Context, sc viewstate.Scope, id model.ItemID) (model.Item, error) {
	t := l.view.BeginIn(sc, viewstate.SliceItem)
	it, err := value(l.client.GetItem(ctx, id))
	if err != nil {
		return model.Item{}, l.failed(sc, viewstate.SliceItem, err)
	}
	l.view.PatchItem(t, it)
	return it, nil
}

// RefreshProfile reloads the profile of the scope's identity through the cache.
// A missing profile is recorded as absent.
func (l *Loader) RefreshProfile(ctx context.Context, sc viewstate.Scope) error {
	if sc.Identity.IsAnonymous() {
		return nil
	}
	t := l.view.BeginIn(sc, viewstate.SliceProfile)
	p, err := l.profiles.Get(ctx, sc.Identity)
	if isNotFound(err) {
		l.view.ApplyProfile(t, nil)
		return nil
	}
	if err != nil {
		return l.failed(sc, viewstate.SliceProfile, err)
	}
	l.view.ApplyProfile(t, &p)
	return nil
}

// Search runs a ledger search and stores the results. Only the latest search lands.
func (l *Loader) Search(ctx context.Context, sc viewstate.Scope, text string, category *model.Category) ([]model.Item, error) {
	t := l.view.BeginIn(sc, viewstate.SliceSearch)
	items, err := value(l.client.SearchItems(ctx, text, category))
	if err != nil {
		return nil, l.failed(sc, viewstate.SliceSearch, err)
	}
	l.view.ApplyList(t, items)
	return items, nil
}

// value flattens a remote call into the payload or the first error.
func value[T any](resp remote.Response[T], err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return resp.Value()
}
