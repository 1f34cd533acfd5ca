// Package convert maps ledger wire messages to domain models and back.
// Identities are normalised here, on receipt, and nowhere else.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/wire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// --- helpers ---

func ts(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func fromTS(t *timestamppb.Timestamp) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.AsTime().UTC()
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Category ---

// ToWireCategory encodes a category as the ledger's single-key variant.
func ToWireCategory(c model.Category) (json.RawMessage, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// FromWireCategory decodes a variant and fails on unknown or missing keys.
func FromWireCategory(raw json.RawMessage) (model.Category, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing category")
	}
	var c model.Category
	if err := c.UnmarshalJSON(raw); err != nil {
		return 0, err
	}
	return c, nil
}

// --- Item (ledger -> client) ---

// FromWireItem converts a ledger item to the domain model.
func FromWireItem(in wire.Item) (model.Item, error) {
	author, err := model.ParseIdentity(in.Author)
	if err != nil {
		return model.Item{}, fmt.Errorf("item %d author: %w", in.ID, err)
	}
	cat, err := FromWireCategory(in.Category)
	if err != nil {
		return model.Item{}, fmt.Errorf("item %d: %w", in.ID, err)
	}
	return model.Item{
		ID:          model.ItemID(in.ID),
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Author:      author,
		Category:    cat,
		Tags:        append([]string(nil), in.Tags...),
		Price:       model.Amount(in.Price),
		IsPremium:   in.IsPremium,
		IsPublic:    in.IsPublic,
		CreatedAt:   fromTS(in.CreatedAt),
		UpdatedAt:   fromTS(in.UpdatedAt),
		LikeCount:   in.Likes,
		Purchases:   in.Purchases,
		Rating:      in.Rating,
		RatingCount: in.TotalRatings,
	}, nil
}

// FromWireItems converts a slice of ledger items; the first malformed item fails the batch.
func FromWireItems(in []wire.Item) ([]model.Item, error) {
	out := make([]model.Item, 0, len(in))
	for i, it := range in {
		m, err := FromWireItem(it)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ToWireItem converts a domain item to the ledger representation.
func ToWireItem(it model.Item) (wire.Item, error) {
	cat, err := ToWireCategory(it.Category)
	if err != nil {
		return wire.Item{}, err
	}
	return wire.Item{
		ID:           uint64(it.ID),
		Title:        it.Title,
		Description:  it.Description,
		Content:      it.Content,
		Author:       it.Author.String(),
		Category:     cat,
		Tags:         append([]string(nil), it.Tags...),
		Price:        uint64(it.Price),
		IsPremium:    it.IsPremium,
		IsPublic:     it.IsPublic,
		CreatedAt:    ts(it.CreatedAt),
		UpdatedAt:    ts(it.UpdatedAt),
		Likes:        it.LikeCount,
		Purchases:    it.Purchases,
		Rating:       it.Rating,
		TotalRatings: it.RatingCount,
	}, nil
}

// --- Profile ---

// FromWireProfile converts a ledger user record.
func FromWireProfile(in wire.Profile) (model.Profile, error) {
	id, err := model.ParseIdentity(in.ID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("profile id: %w", err)
	}
	return model.Profile{
		Identity:       id,
		DisplayName:    deref(in.Username),
		Email:          deref(in.Email),
		JoinedAt:       fromTS(in.JoinedAt),
		TotalEarnings:  model.Amount(in.TotalEarnings),
		TotalSpent:     model.Amount(in.TotalSpent),
		ItemsCreated:   in.PromptsCreated,
		ItemsPurchased: in.PromptsPurchased,
	}, nil
}

// ToWireProfile converts a domain profile to the ledger record.
func ToWireProfile(p model.Profile) wire.Profile {
	return wire.Profile{
		ID:               p.Identity.String(),
		Username:         strPtr(p.DisplayName),
		Email:            strPtr(p.Email),
		JoinedAt:         ts(p.JoinedAt),
		TotalEarnings:    uint64(p.TotalEarnings),
		TotalSpent:       uint64(p.TotalSpent),
		PromptsCreated:   p.ItemsCreated,
		PromptsPurchased: p.ItemsPurchased,
	}
}

// --- Requests (client -> ledger) ---

// ToWireRegister builds a registration request; empty strings travel as absent.
func ToWireRegister(displayName, email string) wire.RegisterRequest {
	return wire.RegisterRequest{Username: strPtr(displayName), Email: strPtr(email)}
}

// ToWireCreate converts a create request.
func ToWireCreate(r model.CreateItem) (wire.CreateItemRequest, error) {
	cat, err := ToWireCategory(r.Category)
	if err != nil {
		return wire.CreateItemRequest{}, err
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return wire.CreateItemRequest{
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		Category:    cat,
		Tags:        tags,
		Price:       uint64(r.Price),
		IsPremium:   r.IsPremium,
		IsPublic:    r.IsPublic,
	}, nil
}

// ToWireUpdate converts an update request, leaving unset fields absent.
func ToWireUpdate(u model.UpdateItem) (wire.UpdateItemRequest, error) {
	out := wire.UpdateItemRequest{
		ID:          uint64(u.ID),
		Title:       u.Title,
		Description: u.Description,
		Content:     u.Content,
		Tags:        u.Tags,
		IsPremium:   u.IsPremium,
		IsPublic:    u.IsPublic,
	}
	if u.Category != nil {
		cat, err := ToWireCategory(*u.Category)
		if err != nil {
			return wire.UpdateItemRequest{}, err
		}
		out.Category = cat
	}
	if u.Price != nil {
		p := uint64(*u.Price)
		out.Price = &p
	}
	return out, nil
}

// FromWireItemIDs converts purchase ids.
func FromWireItemIDs(in []uint64) []model.ItemID {
	out := make([]model.ItemID, 0, len(in))
	for _, id := range in {
		out = append(out, model.ItemID(id))
	}
	return out
}
