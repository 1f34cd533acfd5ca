// Package model defines domain entities shared by the session, the remote client and the view layer.
package model

import (
	"time"
)

// ItemID is the ledger-assigned, immutable item identifier.
type ItemID uint64

// Profile is the ledger's record of a registered identity.
type Profile struct {
	Identity       Identity
	DisplayName    string // empty when the ledger holds no name yet
	Email          string
	JoinedAt       time.Time
	TotalEarnings  Amount
	TotalSpent     Amount
	ItemsCreated   uint64
	ItemsPurchased uint64
}

// HasDisplayName reports whether the profile still needs a name backfill.
func (p Profile) HasDisplayName() bool { return p.DisplayName != "" }

// Item is a unit of licensed content as returned by the ledger.
// Content is empty unless the ledger granted it to the caller.
type Item struct {
	ID          ItemID
	Title       string
	Description string
	Content     string
	Author      Identity
	Category    Category
	Tags        []string
	Price       Amount
	IsPremium   bool
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LikeCount   uint64
	Purchases   uint64
	Rating      float64 // average in [0,5]
	RatingCount uint64
}

// Clone returns a deep copy so callers never share the Tags backing array.
func (it Item) Clone() Item {
	if it.Tags != nil {
		it.Tags = append([]string(nil), it.Tags...)
	}
	return it
}

// CreateItem is a request to publish a new item.
type CreateItem struct {
	Title       string
	Description string
	Content     string
	Category    Category
	Tags        []string
	Price       Amount
	IsPremium   bool
	IsPublic    bool
}

// UpdateItem carries the mutable fields of an item; nil means "leave unchanged".
type UpdateItem struct {
	ID          ItemID
	Title       *string
	Description *string
	Content     *string
	Category    *Category
	Tags        []string // nil leaves tags unchanged
	Price       *Amount
	IsPremium   *bool
	IsPublic    *bool
}

// IsEmpty reports whether the update changes nothing.
func (u UpdateItem) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Content == nil && u.Category == nil &&
		u.Tags == nil && u.Price == nil && u.IsPremium == nil && u.IsPublic == nil
}

// Rating is a single star value given by an identity.
type Rating uint8

// Rating bounds accepted by the ledger.
const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

// Valid reports whether r is within 1..5.
func (r Rating) Valid() bool { return r >= MinRating && r <= MaxRating }
