// Package viewstate holds the reconciled, renderer-agnostic snapshot of the marketplace.
//
// Every refresh takes a Ticket before it issues its query and hands it back on
// apply. An apply is dropped when the ticket belongs to a previous identity
// epoch, when a newer refresh of the same slice has already landed, or when the
// slice is no longer subscribed.
package viewstate

import (
	"sort"
	"sync"

	"github.com/and161185/promptvault/internal/access"
	"github.com/and161185/promptvault/internal/model"
)

// Slice names an independently refreshed part of the state.
type Slice string

// Known slices.
const (
	SliceProfile   Slice = "profile"
	SlicePublic    Slice = "public"
	SliceMine      Slice = "mine"
	SlicePurchased Slice = "purchased"
	SliceLiked     Slice = "liked"
	SliceSearch    Slice = "search"
	SliceItem      Slice = "item"
)

var listSlices = [...]Slice{SlicePublic, SliceMine, SlicePurchased, SliceSearch}

// Ticket stamps a refresh with the identity epoch and a monotonic sequence number.
type Ticket struct {
	Slice Slice
	epoch uint64
	seq   uint64
}

type patch struct {
	seq  uint64
	item model.Item
}

// State is the single mutable view structure. It is safe for concurrent use.
type State struct {
	mu sync.Mutex

	epoch    uint64
	seq      uint64
	identity model.Identity

	profile      *model.Profile
	lists        map[Slice][]model.Item
	purchasedIDs access.IDSet
	liked        access.IDSet
	lastError    error

	applied      map[Slice]uint64
	patches      map[model.ItemID]patch
	unsubscribed map[Slice]bool

	pending map[OpKey]uint64
	opSeq   uint64

	onDiscard func(Slice)
}

// Option customises a State.
type Option func(*State)

// WithDiscardHook registers a callback invoked for every dropped apply.
func WithDiscardHook(fn func(Slice)) Option {
	return func(s *State) { s.onDiscard = fn }
}

// New returns an empty anonymous state.
func New(opts ...Option) *State {
	s := &State{unsubscribed: map[Slice]bool{}}
	for _, o := range opts {
		o(s)
	}
	s.clearLocked(model.Anonymous)
	return s
}

func (s *State) clearLocked(id model.Identity) {
	s.identity = id
	s.profile = nil
	s.lists = make(map[Slice][]model.Item, len(listSlices))
	s.purchasedIDs = access.IDSet{}
	s.liked = access.IDSet{}
	s.lastError = nil
	s.applied = map[Slice]uint64{}
	s.patches = map[model.ItemID]patch{}
	s.pending = map[OpKey]uint64{}
}

// Scope pins refreshes to the identity epoch it was taken in.
type Scope struct {
	Identity model.Identity
	epoch    uint64
}

// Reset discards every slice and starts a new epoch for id. In-flight refreshes
// and operations started before the reset can no longer write.
func (s *State) Reset(id model.Identity) Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.clearLocked(id)
	return Scope{Identity: id, epoch: s.epoch}
}

// Scope returns the current identity epoch.
func (s *State) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Scope{Identity: s.identity, epoch: s.epoch}
}

// Current reports whether sc is still the active epoch.
func (s *State) Current(sc Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sc.epoch == s.epoch
}

// Identity returns the identity the state currently belongs to.
func (s *State) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Begin stamps a refresh of slice. Call it before issuing the query.
func (s *State) Begin(slice Slice) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Ticket{Slice: slice, epoch: s.epoch, seq: s.seq}
}

// BeginIn stamps a refresh of slice within sc. If the identity has changed
// since sc was taken, the ticket can never be applied.
func (s *State) BeginIn(sc Scope, slice Slice) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Ticket{Slice: slice, epoch: sc.epoch, seq: s.seq}
}

// Subscribe re-enables applies to slice.
func (s *State) Subscribe(slice Slice) {
	s.mu.Lock()
	delete(s.unsubscribed, slice)
	s.mu.Unlock()
}

// Unsubscribe turns later applies to slice into no-ops; data already held is kept.
func (s *State) Unsubscribe(slice Slice) {
	s.mu.Lock()
	s.unsubscribed[slice] = true
	s.mu.Unlock()
}

// admitLocked reports whether t may write to its slice and records it as applied.
func (s *State) admitLocked(t Ticket) bool {
	if t.epoch != s.epoch || s.unsubscribed[t.Slice] || t.seq <= s.applied[t.Slice] {
		if s.onDiscard != nil {
			s.onDiscard(t.Slice)
		}
		return false
	}
	s.applied[t.Slice] = t.seq
	return true
}

// ApplyProfile replaces the cached profile. A nil profile records "no profile".
func (s *State) ApplyProfile(t Ticket, p *model.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admitLocked(t) {
		return false
	}
	if p == nil {
		s.profile = nil
		return true
	}
	cp := *p
	s.profile = &cp
	return true
}

// ApplyList replaces one of the item list slices.
func (s *State) ApplyList(t Ticket, items []model.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admitLocked(t) {
		return false
	}
	s.lists[t.Slice] = s.overlayLocked(t.seq, items)
	s.prunePatchesLocked()
	return true
}

// ApplyPurchased replaces the authoritative purchase-id set and its hydrated items.
// Items whose id is not in ids are ignored.
func (s *State) ApplyPurchased(t Ticket, ids []model.ItemID, hydrated []model.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admitLocked(t) {
		return false
	}
	set := access.NewIDSet(ids...)
	kept := make([]model.Item, 0, len(hydrated))
	for _, it := range hydrated {
		if set.Has(it.ID) {
			kept = append(kept, it)
		}
	}
	s.purchasedIDs = set
	s.lists[SlicePurchased] = s.overlayLocked(t.seq, kept)
	s.prunePatchesLocked()
	return true
}

// ApplyLiked records the settled like state of one item.
func (s *State) ApplyLiked(t Ticket, id model.ItemID, liked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch != s.epoch || s.unsubscribed[SliceLiked] {
		if s.onDiscard != nil {
			s.onDiscard(SliceLiked)
		}
		return false
	}
	if liked {
		s.liked[id] = struct{}{}
	} else {
		delete(s.liked, id)
	}
	return true
}

// PatchItem replaces a single item wherever it appears in the lists. A patch is
// only written into lists older than itself and is kept so that an older list
// refresh landing later does not roll it back.
func (s *State) PatchItem(t Ticket, item model.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch != s.epoch {
		if s.onDiscard != nil {
			s.onDiscard(SliceItem)
		}
		return false
	}
	if prev, ok := s.patches[item.ID]; ok && prev.seq >= t.seq {
		if s.onDiscard != nil {
			s.onDiscard(SliceItem)
		}
		return false
	}
	s.patches[item.ID] = patch{seq: t.seq, item: item.Clone()}
	for _, sl := range listSlices {
		if s.unsubscribed[sl] || s.applied[sl] >= t.seq {
			continue
		}
		list := s.lists[sl]
		for i := range list {
			if list[i].ID == item.ID {
				list[i] = item.Clone()
			}
		}
	}
	return true
}

func (s *State) overlayLocked(seq uint64, items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		if p, ok := s.patches[it.ID]; ok && p.seq > seq {
			out[i] = p.item.Clone()
			continue
		}
		out[i] = it.Clone()
	}
	return out
}

// prunePatchesLocked drops patches every loaded list has already caught up
// with. A list that was never applied does not hold patches back.
func (s *State) prunePatchesLocked() {
	var low uint64
	for _, sl := range listSlices {
		a := s.applied[sl]
		if a == 0 {
			continue
		}
		if low == 0 || a < low {
			low = a
		}
	}
	for id, p := range s.patches {
		if p.seq <= low {
			delete(s.patches, id)
		}
	}
}

// Purchased returns a copy of the authoritative purchase-id set.
func (s *State) Purchased() access.IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(access.IDSet, len(s.purchasedIDs))
	for id := range s.purchasedIDs {
		out[id] = struct{}{}
	}
	return out
}

// Liked reports whether the identity's like on id has been confirmed.
func (s *State) Liked(id model.ItemID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liked.Has(id)
}

// Profile returns a copy of the cached profile.
func (s *State) Profile() (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return model.Profile{}, false
	}
	return *s.profile, true
}

// Item looks an item up in the lists, most authoritative first.
func (s *State) Item(id model.ItemID) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range [...]Slice{SliceMine, SlicePurchased, SlicePublic, SliceSearch} {
		for _, it := range s.lists[sl] {
			if it.ID == id {
				return it.Clone(), true
			}
		}
	}
	return model.Item{}, false
}

// Snapshot is an immutable copy of the state for presentation.
type Snapshot struct {
	Identity      model.Identity
	Profile       *model.Profile
	PublicItems   []model.Item
	MyItems       []model.Item
	MyPurchased   []model.Item
	PurchasedIDs  access.IDSet
	Liked         access.IDSet
	SearchResults []model.Item
	Pending       []OpKey
	LastError     error
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Identity:      s.identity,
		PublicItems:   cloneItems(s.lists[SlicePublic]),
		MyItems:       cloneItems(s.lists[SliceMine]),
		MyPurchased:   cloneItems(s.lists[SlicePurchased]),
		SearchResults: cloneItems(s.lists[SliceSearch]),
		PurchasedIDs:  make(access.IDSet, len(s.purchasedIDs)),
		Liked:         make(access.IDSet, len(s.liked)),
		Pending:       make([]OpKey, 0, len(s.pending)),
		LastError:     s.lastError,
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	for id := range s.purchasedIDs {
		snap.PurchasedIDs[id] = struct{}{}
	}
	for id := range s.liked {
		snap.Liked[id] = struct{}{}
	}
	for k := range s.pending {
		snap.Pending = append(snap.Pending, k)
	}
	sort.Slice(snap.Pending, func(i, j int) bool {
		if snap.Pending[i].Item != snap.Pending[j].Item {
			return snap.Pending[i].Item < snap.Pending[j].Item
		}
		return snap.Pending[i].Op < snap.Pending[j].Op
	})
	return snap
}

// LastError returns the error of the most recent failed mutation, if any.
func (s *State) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func cloneItems(in []model.Item) []model.Item {
	if in == nil {
		return nil
	}
	out := make([]model.Item, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}
