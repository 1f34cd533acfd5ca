package ledgertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/promptvault/internal/convert"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
	"github.com/and161185/promptvault/internal/wire"
)

// --- Profiles ---

// RegisterIdentity creates the caller's profile.
func (l *Ledger) RegisterIdentity(ctx context.Context, req *wire.RegisterRequest) (*wire.Envelope[wire.Profile], error) {
	who, fail, err := l.begin(ctx, remote.MethodRegisterIdentity)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[wire.Profile](fail), nil
	}
	if msg := requireCaller(who); msg != "" {
		return wire.Fail[wire.Profile](msg), nil
	}
	if _, ok := l.profiles[who]; ok {
		return wire.Fail[wire.Profile]("User already exists"), nil
	}
	p := model.Profile{Identity: who, JoinedAt: l.now()}
	if req.Username != nil {
		if trimmed(*req.Username) || len(*req.Username) > model.MaxDisplayNameLen {
			return wire.Fail[wire.Profile]("Username must be between 1 and 50 characters"), nil
		}
		p.DisplayName = *req.Username
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	l.profiles[who] = p
	return wire.OK(convert.ToWireProfile(p)), nil
}

// GetProfile looks up a profile.
func (l *Ledger) GetProfile(ctx context.Context, req *wire.IdentityRequest) (*wire.Envelope[wire.Profile], error) {
	_, fail, err := l.begin(ctx, remote.MethodGetProfile)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[wire.Profile](fail), nil
	}
	p, ok := l.profiles[model.Identity(req.Identity)]
	if !ok {
		return wire.Fail[wire.Profile]("User not found"), nil
	}
	return wire.OK(convert.ToWireProfile(p)), nil
}

// UpdateDisplayName renames the caller.
func (l *Ledger) UpdateDisplayName(ctx context.Context, req *wire.UpdateDisplayNameRequest) (*wire.Envelope[wire.Profile], error) {
	who, fail, err := l.begin(ctx, remote.MethodUpdateDisplayName)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[wire.Profile](fail), nil
	}
	if msg := requireCaller(who); msg != "" {
		return wire.Fail[wire.Profile](msg), nil
	}
	if trimmed(req.Username) || len(req.Username) > model.MaxDisplayNameLen {
		return wire.Fail[wire.Profile]("Username must be between 1 and 50 characters"), nil
	}
	p, ok := l.profiles[who]
	if !ok {
		return wire.Fail[wire.Profile]("User not found"), nil
	}
	p.DisplayName = req.Username
	l.profiles[who] = p
	return wire.OK(convert.ToWireProfile(p)), nil
}

// --- Items ---

func validateCreate(r model.CreateItem) string {
	switch {
	case trimmed(r.Title):
		return "Title cannot be empty"
	case len(r.Title) > model.MaxTitleLen:
		return fmt.Sprintf("Title cannot exceed %d characters", model.MaxTitleLen)
	case len(r.Description) > model.MaxDescriptionLen:
		return fmt.Sprintf("Description cannot exceed %d characters", model.MaxDescriptionLen)
	case trimmed(r.Content):
		return "Content cannot be empty"
	case len(r.Content) > model.MaxContentLen:
		return fmt.Sprintf("Content cannot exceed %d characters", model.MaxContentLen)
	case len(r.Tags) > model.MaxTags:
		return fmt.Sprintf("Cannot have more than %d tags", model.MaxTags)
	}
	for _, t := range r.Tags {
		if len(t) > model.MaxTagLen {
			return fmt.Sprintf("Tag cannot exceed %d characters", model.MaxTagLen)
		}
	}
	return ""
}

// CreateItem publishes a new item authored by the caller.
func (l *Ledger) CreateItem(ctx context.Context, req *wire.CreateItemRequest) (*wire.Envelope[wire.Item], error) {
	who, fail, err := l.begin(ctx, remote.MethodCreateItem)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[wire.Item](fail), nil
	}
	if msg := requireCaller(who); msg != "" {
		return wire.Fail[wire.Item](msg), nil
	}
	cat, err := convert.FromWireCategory(req.Category)
	if err != nil {
		return wire.Fail[wire.Item]("Invalid category"), nil
	}
	r := model.CreateItem{
		Title: req.Title, Description: req.Description, Content: req.Content,
		Category: cat, Tags: req.Tags, Price: model.Amount(req.Price),
		IsPremium: req.IsPremium, IsPublic: req.IsPublic,
	}
	if msg := validateCreate(r); msg != "" {
		return wire.Fail[wire.Item](msg), nil
	}
	p, ok := l.profiles[who]
	if !ok {
		return wire.Fail[wire.Item]("User not found. Please create a user first."), nil
	}
	now := l.now()
	it := model.Item{
		ID: l.nextID, Title: strings.TrimSpace(r.Title), Description: r.Description,
		Content: r.Content, Author: who, Category: r.Category, Tags: append([]string(nil), r.Tags...),
		Price: r.Price, IsPremium: r.IsPremium, IsPublic: r.IsPublic,
		CreatedAt: now, UpdatedAt: now,
	}
	l.nextID++
	l.items[it.ID] = it
	p.ItemsCreated++
	l.profiles[who] = p
	w, err := convert.ToWireItem(it)
	if err != nil {
		return nil, err
	}
	return wire.OK(w), nil
}

// UpdateItem changes the set fields of an item the caller authored.
func (l *Ledger) UpdateItem(ctx context.Context, req *wire.UpdateItemRequest) (*wire.Envelope[wire.Item], error) {
	who, fail, err := l.begin(ctx, remote.MethodUpdateItem)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[wire.Item](fail), nil
	}
	it, ok := l.items[model.ItemID(req.ID)]
	if !ok || it.Author != who {
		return wire.Fail[wire.Item]("Unauthorized"), nil
	}
	if req.Title != nil {
		if trimmed(*req.Title) || len(*req.Title) > model.MaxTitleLen {
			return wire.Fail[wire.Item]("Invalid title"), nil
		}
		it.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		if len(*req.Description) > model.MaxDescriptionLen {
			return wire.Fail[wire.Item]("Description too long"), nil
		}
		it.Description = *req.Description
	}
	if req.Content != nil {
		if trimmed(*req.Content) || len(*req.Content) > model.MaxContentLen {
			return wire.Fail[wire.Item]("Invalid content"), nil
		}
		it.Content = *req.Content
	}
	if len(req.Category) > 0 {
		cat, err := convert.FromWireCategory(req.Category)
		if err != nil {
			return wire.Fail[wire.Item]("Invalid category"), nil
		}
		it.Category = cat
	}
	if req.Tags != nil {
		if len(req.Tags) > model.MaxTags {
			return wire.Fail[wire.Item]("Too many tags"), nil
		}
		it.Tags = append([]string(nil), req.Tags...)
	}
	if req.Price != nil {
		it.Price = model.Amount(*req.Price)
	}
	if req.IsPremium != nil {
		it.IsPremium = *req.IsPremium
	}
	if req.IsPublic != nil {
		it.IsPublic = *req.IsPublic
	}
	it.UpdatedAt = l.now()
	l.items[it.ID] = it
	w, err := convert.ToWireItem(it)
	if err != nil {
		return nil, err
	}
	return wire.OK(w), nil
}

// DeleteItem removes an item the caller authored.
func (l *Ledger) DeleteItem(ctx context.Context, req *wire.ItemIDRequest) (*wire.Envelope[string], error) {
	who, fail, err := l.begin(ctx, remote.MethodDeleteItem)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[string](fail), nil
	}
	id := model.ItemID(req.ID)
	it, ok := l.items[id]
	if !ok || it.Author != who {
		return wire.Fail[string]("Unauthorized"), nil
	}
	delete(l.items, id)
	if p, ok := l.profiles[who]; ok && p.ItemsCreated > 0 {
		p.ItemsCreated--
		l.profiles[who] = p
	}
	return wire.OK("Prompt deleted successfully"), nil
}

// GetItem returns an item, withholding content the caller may not read.
func (l *Ledger) GetItem(ctx context.Context, req *wire.ItemIDRequest) (*wire.Envelope[wire.Item], error) {
	who, fail, err := l.begin(ctx, remote.MethodGetItem)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[wire.Item](fail), nil
	}
	it, ok := l.items[model.ItemID(req.ID)]
	if !ok {
		return wire.Fail[wire.Item]("Prompt not found"), nil
	}
	w, err := convert.ToWireItem(l.viewLocked(who, it))
	if err != nil {
		return nil, err
	}
	return wire.OK(w), nil
}

// GetItemContent grants content to public viewers, the author and purchasers.
func (l *Ledger) GetItemContent(ctx context.Context, req *wire.ItemIDRequest) (*wire.Envelope[string], error) {
	who, fail, err := l.begin(ctx, remote.MethodGetItemContent)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[string](fail), nil
	}
	it, ok := l.items[model.ItemID(req.ID)]
	if !ok {
		return wire.Fail[string]("Prompt not found"), nil
	}
	if it.IsPublic || it.Author == who || l.hasPurchasedLocked(who, it.ID) {
		return wire.OK(it.Content), nil
	}
	return wire.Fail[string]("Access denied. Purchase required."), nil
}

// ListPublicItems lists public items in id order.
func (l *Ledger) ListPublicItems(ctx context.Context, _ *wire.Empty) (*wire.Envelope[[]wire.Item], error) {
	who, fail, err := l.begin(ctx, remote.MethodListPublicItems)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[[]wire.Item](fail), nil
	}
	var out []model.Item
	for _, it := range l.items {
		if it.IsPublic {
			out = append(out, it)
		}
	}
	ws, err := l.toWireLocked(who, out)
	if err != nil {
		return nil, err
	}
	return wire.OK(ws), nil
}

// ListItemsByAuthor lists items authored by the addressed identity.
func (l *Ledger) ListItemsByAuthor(ctx context.Context, req *wire.IdentityRequest) (*wire.Envelope[[]wire.Item], error) {
	who, fail, err := l.begin(ctx, remote.MethodListItemsByAuthor)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[[]wire.Item](fail), nil
	}
	var out []model.Item
	for _, it := range l.items {
		if it.Author == model.Identity(req.Identity) {
			out = append(out, it)
		}
	}
	ws, err := l.toWireLocked(who, out)
	if err != nil {
		return nil, err
	}
	return wire.OK(ws), nil
}

// SearchItems matches public items by title, description or tag, case-insensitively.
func (l *Ledger) SearchItems(ctx context.Context, req *wire.SearchRequest) (*wire.Envelope[[]wire.Item], error) {
	who, fail, err := l.begin(ctx, remote.MethodSearchItems)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[[]wire.Item](fail), nil
	}
	var cat model.Category
	if len(req.Category) > 0 {
		if cat, err = convert.FromWireCategory(req.Category); err != nil {
			return wire.Fail[[]wire.Item]("Invalid category"), nil
		}
	}
	q := strings.ToLower(req.Query)
	var out []model.Item
	for _, it := range l.items {
		if !it.IsPublic || (cat != 0 && it.Category != cat) {
			continue
		}
		if matches(it, q) {
			out = append(out, it)
		}
	}
	ws, err := l.toWireLocked(who, out)
	if err != nil {
		return nil, err
	}
	return wire.OK(ws), nil
}

func matches(it model.Item, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Description), q) {
		return true
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// --- Settlement ---

// PurchaseItem transfers the price from the caller to the author.
func (l *Ledger) PurchaseItem(ctx context.Context, req *wire.ItemIDRequest) (*wire.Envelope[string], error) {
	who, fail, err := l.begin(ctx, remote.MethodPurchaseItem)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[string](fail), nil
	}
	if msg := requireCaller(who); msg != "" {
		return wire.Fail[string](msg), nil
	}
	id := model.ItemID(req.ID)
	it, ok := l.items[id]
	switch {
	case !ok:
		return wire.Fail[string]("Prompt not found"), nil
	case it.Author == who:
		return wire.Fail[string]("Cannot purchase your own prompt"), nil
	case l.hasPurchasedLocked(who, id):
		return wire.Fail[string]("Prompt already purchased"), nil
	case l.balances[who] < it.Price:
		return wire.Fail[string]("Insufficient funds"), nil
	}
	l.balances[who] -= it.Price
	l.balances[it.Author] += it.Price
	l.purchases[who] = append(l.purchases[who], id)
	it.Purchases++
	l.items[id] = it
	if p, ok := l.profiles[who]; ok {
		p.ItemsPurchased++
		p.TotalSpent += it.Price
		l.profiles[who] = p
	}
	if p, ok := l.profiles[it.Author]; ok {
		p.TotalEarnings += it.Price
		l.profiles[it.Author] = p
	}
	return wire.OK("Purchase successful"), nil
}

// LikeItem likes an item once per identity.
func (l *Ledger) LikeItem(ctx context.Context, req *wire.ItemIDRequest) (*wire.Envelope[string], error) {
	return l.toggleLike(ctx, remote.MethodLikeItem, model.ItemID(req.ID), true)
}

// UnlikeItem removes the caller's like.
func (l *Ledger) UnlikeItem(ctx context.Context, req *wire.ItemIDRequest) (*wire.Envelope[string], error) {
	return l.toggleLike(ctx, remote.MethodUnlikeItem, model.ItemID(req.ID), false)
}

func (l *Ledger) toggleLike(ctx context.Context, method string, id model.ItemID, like bool) (*wire.Envelope[string], error) {
	who, fail, err := l.begin(ctx, method)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[string](fail), nil
	}
	if msg := requireCaller(who); msg != "" {
		return wire.Fail[string](msg), nil
	}
	it, ok := l.items[id]
	if !ok {
		return wire.Fail[string]("Prompt not found"), nil
	}
	liked := l.likes[who][id]
	switch {
	case like && liked:
		return wire.Fail[string]("Prompt already liked"), nil
	case !like && !liked:
		return wire.Fail[string]("Prompt was not liked"), nil
	}
	if l.likes[who] == nil {
		l.likes[who] = map[model.ItemID]bool{}
	}
	if like {
		l.likes[who][id] = true
		it.LikeCount++
		l.items[id] = it
		return wire.OK("Prompt liked successfully"), nil
	}
	delete(l.likes[who], id)
	if it.LikeCount > 0 {
		it.LikeCount--
	}
	l.items[id] = it
	return wire.OK("Prompt unliked successfully"), nil
}

// RateItem records the caller's rating; a later rating replaces an earlier one.
func (l *Ledger) RateItem(ctx context.Context, req *wire.RateRequest) (*wire.Envelope[string], error) {
	who, fail, err := l.begin(ctx, remote.MethodRateItem)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[string](fail), nil
	}
	if msg := requireCaller(who); msg != "" {
		return wire.Fail[string](msg), nil
	}
	r := model.Rating(req.Rating)
	if !r.Valid() {
		return wire.Fail[string]("Rating must be between 1 and 5"), nil
	}
	id := model.ItemID(req.ItemID)
	it, ok := l.items[id]
	switch {
	case !ok:
		return wire.Fail[string]("Prompt not found"), nil
	case it.Author == who:
		return wire.Fail[string]("Cannot rate your own prompt"), nil
	case !it.IsPublic && !l.hasPurchasedLocked(who, id):
		return wire.Fail[string]("Must purchase prompt to rate it"), nil
	}
	if l.ratings[id] == nil {
		l.ratings[id] = map[model.Identity]model.Rating{}
	}
	l.ratings[id][who] = r
	var total float64
	for _, v := range l.ratings[id] {
		total += float64(v)
	}
	it.RatingCount = uint64(len(l.ratings[id]))
	it.Rating = total / float64(it.RatingCount)
	l.items[id] = it
	return wire.OK("Prompt rated successfully"), nil
}

// ListPurchaseIds returns the ids the addressed identity has purchased.
func (l *Ledger) ListPurchaseIds(ctx context.Context, req *wire.IdentityRequest) (*wire.Envelope[[]uint64], error) {
	_, fail, err := l.begin(ctx, remote.MethodListPurchaseIds)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[[]uint64](fail), nil
	}
	ids := l.purchases[model.Identity(req.Identity)]
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		out = append(out, uint64(id))
	}
	return wire.OK(out), nil
}

// GetLedgerBalance returns the addressed identity's balance.
func (l *Ledger) GetLedgerBalance(ctx context.Context, req *wire.IdentityRequest) (*wire.Envelope[uint64], error) {
	_, fail, err := l.begin(ctx, remote.MethodGetLedgerBalance)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	if fail != "" {
		return wire.Fail[uint64](fail), nil
	}
	return wire.OK(uint64(l.balances[model.Identity(req.Identity)])), nil
}
