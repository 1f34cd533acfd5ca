// Package service coordinates the marketplace session: bootstrap, state
// assembly and settled mutations against the ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/promptvault/internal/access"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/metrics"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
	"github.com/and161185/promptvault/internal/viewstate"
)

// IdentitySource reports the current caller. BrowseOnly is true when the
// caller is authenticated but onboarding left it without a ledger profile.
type IdentitySource interface {
	Current() model.Identity
	BrowseOnly() bool
}

// MutationCoordinator drives every state-changing call. A mutation is
// single-flight per (item, operation), applies nothing before the ledger
// confirms it, and then re-queries only the slices it affected.
type MutationCoordinator interface {
	Purchase(ctx context.Context, id model.ItemID) error
	Like(ctx context.Context, id model.ItemID) error
	Unlike(ctx context.Context, id model.ItemID) error
	ToggleLike(ctx context.Context, id model.ItemID) (liked bool, err error)
	Rate(ctx context.Context, id model.ItemID, r model.Rating) error
	CreateItem(ctx context.Context, req model.CreateItem) (model.Item, error)
	UpdateItem(ctx context.Context, req model.UpdateItem) (model.Item, error)
	DeleteItem(ctx context.Context, id model.ItemID) error
	UpdateDisplayName(ctx context.Context, name string) (model.Profile, error)
}

type CoordinatorImpl struct {
	client   remote.Client
	who      IdentitySource
	view     *viewstate.State
	loader   *Loader
	profiles *ProfileCache
	metrics  metrics.MetricsCollector
	log      *zap.Logger
	now      func() time.Time
}

var _ MutationCoordinator = (*CoordinatorImpl)(nil)

// NewCoordinator constructs the coordinator.
func NewCoordinator(client remote.Client, who IdentitySource, view *viewstate.State, loader *Loader, profiles *ProfileCache, m metrics.MetricsCollector, log *zap.Logger) *CoordinatorImpl {
	if m == nil {
		m = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CoordinatorImpl{client: client, who: who, view: view, loader: loader, profiles: profiles, metrics: m, log: log, now: time.Now}
}

func invalid(err error) error {
	return fmt.Errorf("validation: %v: %w", err, errs.ErrInvalidInput)
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }

// run moves key through InFlight to Settled or Failed. call must only talk to
// the ledger; settle runs after confirmation while the slot is still held.
func (c *CoordinatorImpl) run(ctx context.Context, key viewstate.OpKey, call func(context.Context) error, settle func(context.Context, viewstate.Scope)) error {
	op, ok := c.view.BeginOp(key)
	if !ok {
		c.metrics.RecordMutation(string(key.Op), metrics.OutcomeBusy)
		return fmt.Errorf("%s item %d: %w", key.Op, key.Item, errs.ErrBusy)
	}
	defer c.view.EndOp(op)

	start := c.now()
	err := call(ctx)
	c.metrics.RecordMutationLatency(string(key.Op), c.now().Sub(start))
	if err != nil {
		c.view.Fail(op, err)
		c.metrics.RecordMutation(string(key.Op), metrics.OutcomeFailed)
		c.log.Info("mutation failed",
			zap.String("op", string(key.Op)),
			zap.Uint64("item_id", uint64(key.Item)),
			zap.Error(err),
		)
		return err
	}

	c.view.Settle(op)
	c.metrics.RecordMutation(string(key.Op), metrics.OutcomeSettled)
	c.log.Info("mutation settled",
		zap.String("op", string(key.Op)),
		zap.Uint64("item_id", uint64(key.Item)),
	)
	// nothing to reconcile for an identity that is gone
	if settle != nil && c.view.Current(op.Scope()) {
		settle(ctx, op.Scope())
	}
	return nil
}

// caller returns the authenticated identity or fails fast.
func (c *CoordinatorImpl) caller() (model.Identity, error) {
	who := c.who.Current()
	if who.IsAnonymous() {
		return "", errs.ErrNotAuthenticated
	}
	if c.who.BrowseOnly() {
		return "", fmt.Errorf("no ledger profile for %s: %w", who, errs.ErrUnauthorized)
	}
	return who, nil
}

// Purchase buys an item. Known self-purchases and repeat purchases are refused
// locally; everything else is decided by the ledger.
func (c *CoordinatorImpl) Purchase(ctx context.Context, id model.ItemID) error {
	who, err := c.caller()
	if err != nil {
		return err
	}
	if it, ok := c.view.Item(id); ok {
		switch access.Classify(who, it, c.view.Purchased()) {
		case access.Owner:
			return fmt.Errorf("purchase item %d: cannot purchase your own item: %w", id, errs.ErrUnauthorized)
		case access.Purchased:
			return fmt.Errorf("purchase item %d: already purchased: %w", id, errs.ErrUnauthorized)
		}
	}
	return c.run(ctx, viewstate.OpKey{Item: id, Op: viewstate.OpPurchase},
		func(ctx context.Context) error { return settled(c.client.PurchaseItem(ctx, id)) },
		func(ctx context.Context, sc viewstate.Scope) {
			c.profiles.Invalidate(who)
			_, _ = c.loader.RefreshItem(ctx, sc, id)
			_ = c.loader.RefreshPurchased(ctx, sc)
			_ = c.loader.RefreshProfile(ctx, sc)
		})
}

// Like likes an item. Liking an item the ledger already records as liked settles.
func (c *CoordinatorImpl) Like(ctx context.Context, id model.ItemID) error {
	_, err := c.setLike(ctx, id, true)
	return err
}

// Unlike removes a like. Unliking an item that is not liked settles.
func (c *CoordinatorImpl) Unlike(ctx context.Context, id model.ItemID) error {
	_, err := c.setLike(ctx, id, false)
	return err
}

// ToggleLike flips the like state of an item and returns the new state. The
// guess comes from likes confirmed this session; when the ledger reports it
// already held the guessed state, the opposite call is made.
func (c *CoordinatorImpl) ToggleLike(ctx context.Context, id model.ItemID) (bool, error) {
	want := !c.view.Liked(id)
	changed, err := c.setLike(ctx, id, want)
	if err != nil {
		return !want, err
	}
	if changed {
		return want, nil
	}
	if _, err := c.setLike(ctx, id, !want); err != nil {
		return want, err
	}
	return !want, nil
}

// setLike reports changed=false when the ledger already held the requested state.
func (c *CoordinatorImpl) setLike(ctx context.Context, id model.ItemID, like bool) (changed bool, err error) {
	if _, err := c.caller(); err != nil {
		return false, err
	}
	op, call := viewstate.OpUnlike, c.client.UnlikeItem
	if like {
		op, call = viewstate.OpLike, c.client.LikeItem
	}
	err = c.run(ctx, viewstate.OpKey{Item: id, Op: op},
		func(ctx context.Context) error {
			err := settled(call(ctx, id))
			if errors.Is(err, errs.ErrAlreadyExists) {
				return nil
			}
			changed = err == nil
			return err
		},
		func(ctx context.Context, sc viewstate.Scope) {
			c.view.ApplyLiked(c.view.BeginIn(sc, viewstate.SliceLiked), id, like)
			_, _ = c.loader.RefreshItem(ctx, sc, id)
		})
	return changed, err
}

// Rate rates an item 1..5; a later rating replaces an earlier one.
func (c *CoordinatorImpl) Rate(ctx context.Context, id model.ItemID, r model.Rating) error {
	who, err := c.caller()
	if err != nil {
		return err
	}
	if !r.Valid() {
		return invalid(fmt.Errorf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}
	if it, ok := c.view.Item(id); ok && !access.Evaluate(who, it, c.view.Purchased()).CanRate {
		return fmt.Errorf("rate item %d: %w", id, errs.ErrUnauthorized)
	}
	return c.run(ctx, viewstate.OpKey{Item: id, Op: viewstate.OpRate},
		func(ctx context.Context) error { return settled(c.client.RateItem(ctx, id, r)) },
		func(ctx context.Context, sc viewstate.Scope) {
			_, _ = c.loader.RefreshItem(ctx, sc, id)
		})
}

// CreateItem publishes a new item after validating it locally.
func (c *CoordinatorImpl) CreateItem(ctx context.Context, req model.CreateItem) (model.Item, error) {
	who, err := c.caller()
	if err != nil {
		return model.Item{}, err
	}
	if err := req.Validate(); err != nil {
		return model.Item{}, invalid(err)
	}
	var created model.Item
	err = c.run(ctx, viewstate.OpKey{Op: viewstate.OpCreate},
		func(ctx context.Context) error {
			it, err := value(c.client.CreateItem(ctx, req))
			created = it
			return err
		},
		c.authoredChanged(who))
	return created, err
}

// UpdateItem changes the set fields of an item the caller authored.
func (c *CoordinatorImpl) UpdateItem(ctx context.Context, req model.UpdateItem) (model.Item, error) {
	who, err := c.caller()
	if err != nil {
		return model.Item{}, err
	}
	if err := req.Validate(); err != nil {
		return model.Item{}, invalid(err)
	}
	if it, ok := c.view.Item(req.ID); ok && it.Author != who {
		return model.Item{}, fmt.Errorf("update item %d: %w", req.ID, errs.ErrUnauthorized)
	}
	var updated model.Item
	err = c.run(ctx, viewstate.OpKey{Item: req.ID, Op: viewstate.OpUpdate},
		func(ctx context.Context) error {
			it, err := value(c.client.UpdateItem(ctx, req))
			updated = it
			return err
		},
		c.authoredChanged(who))
	return updated, err
}

// DeleteItem removes an item the caller authored.
func (c *CoordinatorImpl) DeleteItem(ctx context.Context, id model.ItemID) error {
	who, err := c.caller()
	if err != nil {
		return err
	}
	if it, ok := c.view.Item(id); ok && it.Author != who {
		return fmt.Errorf("delete item %d: %w", id, errs.ErrUnauthorized)
	}
	return c.run(ctx, viewstate.OpKey{Item: id, Op: viewstate.OpDelete},
		func(ctx context.Context) error { return settled(c.client.DeleteItem(ctx, id)) },
		c.authoredChanged(who))
}

// authoredChanged re-queries the authored set and the public list.
func (c *CoordinatorImpl) authoredChanged(who model.Identity) func(context.Context, viewstate.Scope) {
	return func(ctx context.Context, sc viewstate.Scope) {
		c.profiles.Invalidate(who)
		_ = c.loader.RefreshMine(ctx, sc)
		_ = c.loader.RefreshPublic(ctx, sc)
		_ = c.loader.RefreshProfile(ctx, sc)
	}
}

// UpdateDisplayName renames the caller and refreshes the cached profile.
func (c *CoordinatorImpl) UpdateDisplayName(ctx context.Context, name string) (model.Profile, error) {
	if _, err := c.caller(); err != nil {
		return model.Profile{}, err
	}
	if err := model.ValidateDisplayName(name); err != nil {
		return model.Profile{}, invalid(err)
	}
	var p model.Profile
	err := c.run(ctx, viewstate.OpKey{Op: viewstate.OpProfile},
		func(ctx context.Context) error {
			got, err := value(c.client.UpdateDisplayName(ctx, name))
			p = got
			return err
		},
		func(ctx context.Context, sc viewstate.Scope) {
			c.profiles.Put(p)
			c.view.ApplyProfile(c.view.BeginIn(sc, viewstate.SliceProfile), &p)
		})
	return p, err
}

// settled reduces a mutation reply to its verdict.
func settled[T any](resp remote.Response[T], err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}
