// Package access decides what an identity may do with an item.
//
// Everything here is a pure function of its arguments: no I/O, no clocks, no
// shared state. Precedence is fixed as Owner > Purchased > PublicViewer > Locked.
package access

import "github.com/and161185/promptvault/internal/model"

// Classification is the access tier of an (identity, item) pair.
type Classification uint8

// Access tiers in precedence order.
const (
	Locked Classification = iota
	PublicViewer
	Purchased
	Owner
)

func (c Classification) String() string {
	switch c {
	case Owner:
		return "owner"
	case Purchased:
		return "purchased"
	case PublicViewer:
		return "public"
	default:
		return "locked"
	}
}

// PurchaseSet answers membership in the ledger's purchase set for an identity.
type PurchaseSet interface {
	Has(id model.ItemID) bool
}

// IDSet is a PurchaseSet backed by a map.
type IDSet map[model.ItemID]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...model.ItemID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership; a nil set is empty.
func (s IDSet) Has(id model.ItemID) bool {
	_, ok := s[id]
	return ok
}

// Classify returns the access tier of who for item.
func Classify(who model.Identity, item model.Item, purchased PurchaseSet) Classification {
	if !who.IsAnonymous() {
		if item.Author == who {
			return Owner
		}
		if purchased != nil && purchased.Has(item.ID) {
			return Purchased
		}
	}
	if item.IsPublic {
		return PublicViewer
	}
	return Locked
}

// Verdict is the full evaluation presentation needs for one item.
type Verdict struct {
	Class       Classification
	CanView     bool // content may be requested
	CanPurchase bool
	CanRate     bool
}

// Evaluate classifies the pair and derives the allowed actions.
func Evaluate(who model.Identity, item model.Item, purchased PurchaseSet) Verdict {
	c := Classify(who, item, purchased)
	return Verdict{
		Class:       c,
		CanView:     c != Locked,
		CanPurchase: c != Owner && c != Purchased && !item.Price.IsFree(),
		CanRate:     !who.IsAnonymous() && c != Owner && c != Locked,
	}
}
