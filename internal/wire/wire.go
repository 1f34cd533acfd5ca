// Package wire defines the JSON messages exchanged with the ledger service.
//
// Field names follow the ledger's snake_case schema. Timestamps travel as
// protobuf Timestamps so both ends agree on seconds/nanos precision.
package wire

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// Envelope is the uniform ledger reply: success flag, optional payload, optional error.
type Envelope[T any] struct {
	Success bool    `json:"success"`
	Data    *T      `json:"data,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// OK builds a successful envelope.
func OK[T any](v T) *Envelope[T] { return &Envelope[T]{Success: true, Data: &v} }

// Fail builds a failed envelope carrying msg.
func Fail[T any](msg string) *Envelope[T] { return &Envelope[T]{Success: false, Error: &msg} }

// Item mirrors the ledger's item record.
type Item struct {
	ID           uint64                 `json:"id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Content      string                 `json:"content"`
	Author       string                 `json:"author"`
	Category     json.RawMessage        `json:"category"`
	Tags         []string               `json:"tags"`
	Price        uint64                 `json:"price"`
	IsPremium    bool                   `json:"is_premium"`
	IsPublic     bool                   `json:"is_public"`
	CreatedAt    *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt    *timestamppb.Timestamp `json:"updated_at,omitempty"`
	Likes        uint64                 `json:"likes"`
	Purchases    uint64                 `json:"purchases"`
	Rating       float64                `json:"rating"`
	TotalRatings uint64                 `json:"total_ratings"`
}

// Profile mirrors the ledger's user record.
type Profile struct {
	ID               string                 `json:"id"`
	Username         *string                `json:"username,omitempty"`
	Email            *string                `json:"email,omitempty"`
	JoinedAt         *timestamppb.Timestamp `json:"joined_at,omitempty"`
	TotalEarnings    uint64                 `json:"total_earnings"`
	TotalSpent       uint64                 `json:"total_spent"`
	PromptsCreated   uint64                 `json:"prompts_created"`
	PromptsPurchased uint64                 `json:"prompts_purchased"`
}

// Empty is the request of parameterless calls.
type Empty struct{}

// RegisterRequest creates the caller's profile.
type RegisterRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// IdentityRequest addresses a principal.
type IdentityRequest struct {
	Identity string `json:"identity"`
}

// UpdateDisplayNameRequest renames the caller.
type UpdateDisplayNameRequest struct {
	Username string `json:"username"`
}

// CreateItemRequest publishes a new item.
type CreateItemRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	Category    json.RawMessage `json:"category"`
	Tags        []string        `json:"tags"`
	Price       uint64          `json:"price"`
	IsPremium   bool            `json:"is_premium"`
	IsPublic    bool            `json:"is_public"`
}

// UpdateItemRequest changes the set fields of an item.
type UpdateItemRequest struct {
	ID          uint64          `json:"id"`
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Content     *string         `json:"content,omitempty"`
	Category    json.RawMessage `json:"category,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Price       *uint64         `json:"price,omitempty"`
	IsPremium   *bool           `json:"is_premium,omitempty"`
	IsPublic    *bool           `json:"is_public,omitempty"`
}

// ItemIDRequest addresses a single item.
type ItemIDRequest struct {
	ID uint64 `json:"id"`
}

// SearchRequest filters items server-side.
type SearchRequest struct {
	Query    string          `json:"query"`
	Category json.RawMessage `json:"category,omitempty"`
}

// RateRequest rates an item 1..5.
type RateRequest struct {
	ItemID uint64 `json:"prompt_id"`
	Rating uint8  `json:"rating"`
}
