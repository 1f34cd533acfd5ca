package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/promptvault/internal/access"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
)

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type itemView struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	Author      string    `json:"author"`
	Price       string    `json:"price"`
	Premium     bool      `json:"premium"`
	Public      bool      `json:"public"`
	Likes       uint64    `json:"likes"`
	Purchases   uint64    `json:"purchases"`
	Rating      string    `json:"rating"`
	Access      string    `json:"access"`
	CanPurchase bool      `json:"can_purchase"`
	CanRate     bool      `json:"can_rate"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	Content     string    `json:"content,omitempty"`
}

func toItemView(it model.Item, v access.Verdict) itemView {
	return itemView{
		ID:          uint64(it.ID),
		Title:       it.Title,
		Description: it.Description,
		Category:    it.Category.String(),
		Tags:        it.Tags,
		Author:      it.Author.String(),
		Price:       it.Price.String(),
		Premium:     it.IsPremium,
		Public:      it.IsPublic,
		Likes:       it.LikeCount,
		Purchases:   it.Purchases,
		Rating:      fmt.Sprintf("%.1f (%d)", it.Rating, it.RatingCount),
		Access:      v.Class.String(),
		CanPurchase: v.CanPurchase,
		CanRate:     v.CanRate,
		UpdatedAt:   it.UpdatedAt,
		Content:     it.Content,
	}
}

func itemViews(who model.Identity, purchased access.PurchaseSet, items []model.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, toItemView(it, access.Evaluate(who, it, purchased)))
	}
	return out
}

type profileView struct {
	Identity       string    `json:"identity"`
	DisplayName    string    `json:"display_name,omitempty"`
	Email          string    `json:"email,omitempty"`
	JoinedAt       time.Time `json:"joined_at,omitempty"`
	TotalEarnings  string    `json:"total_earnings"`
	TotalSpent     string    `json:"total_spent"`
	ItemsCreated   uint64    `json:"items_created"`
	ItemsPurchased uint64    `json:"items_purchased"`
}

func toProfileView(p model.Profile) profileView {
	return profileView{
		Identity:       p.Identity.String(),
		DisplayName:    p.DisplayName,
		Email:          p.Email,
		JoinedAt:       p.JoinedAt,
		TotalEarnings:  p.TotalEarnings.String(),
		TotalSpent:     p.TotalSpent.String(),
		ItemsCreated:   p.ItemsCreated,
		ItemsPurchased: p.ItemsPurchased,
	}
}

// ---- argument parsing ----

func parseItemID(s string) (model.ItemID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("bad item id %q: %w", s, errs.ErrInvalidInput)
	}
	return model.ItemID(v), nil
}

func parseRating(s string) (model.Rating, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || !model.Rating(v).Valid() {
		return 0, fmt.Errorf("rating must be %d..%d: %w", model.MinRating, model.MaxRating, errs.ErrInvalidInput)
	}
	return model.Rating(v), nil
}

// parseCategory accepts category names in any letter case.
func parseCategory(s string) (model.Category, error) {
	for _, c := range model.Categories() {
		if strings.EqualFold(c.String(), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	names := make([]string, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		names = append(names, c.String())
	}
	return 0, fmt.Errorf("unknown category %q (one of %s): %w", s, strings.Join(names, ", "), errs.ErrInvalidInput)
}

func parsePrice(s string) (model.Amount, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("bad price %q: %w", s, errs.ErrInvalidInput)
	}
	a, err := model.AmountFromMajor(v)
	if err != nil {
		return 0, fmt.Errorf("price: %v: %w", err, errs.ErrInvalidInput)
	}
	return a, nil
}
