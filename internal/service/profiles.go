package service

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
)

// ProfileCache memoises ledger profiles by identity. Concurrent lookups of the
// same identity share one call.
type ProfileCache struct {
	client remote.Client
	group  singleflight.Group

	mu      sync.Mutex
	gen     uint64
	entries map[model.Identity]model.Profile
}

// NewProfileCache creates an empty cache.
func NewProfileCache(client remote.Client) *ProfileCache {
	return &ProfileCache{client: client, entries: map[model.Identity]model.Profile{}}
}

// Get returns the cached profile of who or fetches it. A ledger "not found"
// is returned as an error matching errs.ErrNotFound and is not cached.
func (c *ProfileCache) Get(ctx context.Context, who model.Identity) (model.Profile, error) {
	c.mu.Lock()
	p, ok := c.entries[who]
	gen := c.gen
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do(who.String(), func() (any, error) {
		resp, err := c.client.GetProfile(ctx, who)
		if err != nil {
			return model.Profile{}, err
		}
		return resp.Value()
	})
	if err != nil {
		return model.Profile{}, err
	}
	p = v.(model.Profile)

	c.mu.Lock()
	// an invalidation during the fetch means the result may predate a mutation
	if c.gen == gen {
		c.entries[who] = p
	}
	c.mu.Unlock()
	return p, nil
}

// Put stores a profile the ledger just returned.
func (c *ProfileCache) Put(p model.Profile) {
	c.mu.Lock()
	c.gen++
	c.entries[p.Identity] = p
	c.mu.Unlock()
}

// Invalidate forgets who's profile.
func (c *ProfileCache) Invalidate(who model.Identity) {
	c.mu.Lock()
	c.gen++
	delete(c.entries, who)
	c.mu.Unlock()
	c.group.Forget(who.String())
}

// Reset forgets everything.
func (c *ProfileCache) Reset() {
	c.mu.Lock()
	c.gen++
	c.entries = map[model.Identity]model.Profile{}
	c.mu.Unlock()
}
