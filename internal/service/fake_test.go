package service

import (
	"context"
	"strings"
	"sync"

	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
)

const (
	alice model.Identity = "aaaaa-aa"
	bob   model.Identity = "bbbbb-bb"
)

func ok[T any](v T) (remote.Response[T], error) {
	return remote.Response[T]{Success: true, Data: &v}, nil
}

func rejected[T any](msg string) (remote.Response[T], error) {
	return remote.Response[T]{Error: msg}, nil
}

// fakeClient is an in-memory ledger behind the remote.Client contract.
type fakeClient struct {
	caller func() model.Identity

	mu        sync.Mutex
	nextID    model.ItemID
	profiles  map[model.Identity]model.Profile
	items     map[model.ItemID]model.Item
	purchases map[model.Identity][]model.ItemID
	likes     map[model.Identity]map[model.ItemID]bool
	balance   map[model.Identity]model.Amount
	calls     map[string]int

	fail      map[string]string // method -> ledger error
	transport map[string]error  // method -> transport error
	gate      map[string]chan struct{}
	entered   chan string
}

var _ remote.Client = (*fakeClient)(nil)

func newFakeClient(caller func() model.Identity) *fakeClient {
	return &fakeClient{
		caller:    caller,
		nextID:    100,
		profiles:  map[model.Identity]model.Profile{},
		items:     map[model.ItemID]model.Item{},
		purchases: map[model.Identity][]model.ItemID{},
		likes:     map[model.Identity]map[model.ItemID]bool{},
		balance:   map[model.Identity]model.Amount{},
		calls:     map[string]int{},
		fail:      map[string]string{},
		transport: map[string]error{},
		gate:      map[string]chan struct{}{},
		entered:   make(chan string, 16),
	}
}

func (f *fakeClient) seedItem(it model.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[it.ID] = it
}

func (f *fakeClient) seedProfile(p model.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.Identity] = p
}

func (f *fakeClient) failWith(method, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = msg
}

func (f *fakeClient) breakTransport(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transport[method] = err
}

// hold makes method block until the returned func is called.
func (f *fakeClient) hold(method string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate[method] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeClient) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// enter records the call and its caller, then waits on a gate. The caller is
// captured before the gate, as a real call binds its bearer token when it
// starts. It returns with mu held unless a failure is injected, in which case
// failMsg or transportErr is set.
func (f *fakeClient) enter(ctx context.Context, method string) (as model.Identity, failMsg string, transportErr error) {
	as = f.caller()
	f.mu.Lock()
	f.calls[method]++
	ch := f.gate[method]
	f.mu.Unlock()
	if ch != nil {
		select {
		case f.entered <- method:
		default:
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return as, "", ctx.Err()
		}
	}
	f.mu.Lock()
	if err := f.transport[method]; err != nil {
		f.mu.Unlock()
		return as, "", err
	}
	if msg, ok := f.fail[method]; ok {
		delete(f.fail, method)
		f.mu.Unlock()
		return as, msg, nil
	}
	return as, "", nil
}

func (f *fakeClient) RegisterIdentity(ctx context.Context, displayName, email string) (remote.Response[model.Profile], error) {
	who, msg, err := f.enter(ctx, "RegisterIdentity")
	if err != nil {
		return remote.Response[model.Profile]{}, err
	}
	if msg != "" {
		return rejected[model.Profile](msg)
	}
	defer f.mu.Unlock()
	if _, ok := f.profiles[who]; ok {
		return rejected[model.Profile]("User already exists")
	}
	p := model.Profile{Identity: who, DisplayName: displayName, Email: email}
	f.profiles[who] = p
	return ok(p)
}

func (f *fakeClient) GetProfile(ctx context.Context, who model.Identity) (remote.Response[model.Profile], error) {
	_, msg, err := f.enter(ctx, "GetProfile")
	if err != nil {
		return remote.Response[model.Profile]{}, err
	}
	if msg != "" {
		return rejected[model.Profile](msg)
	}
	defer f.mu.Unlock()
	p, found := f.profiles[who]
	if !found {
		return rejected[model.Profile]("User not found")
	}
	return ok(p)
}

func (f *fakeClient) UpdateDisplayName(ctx context.Context, name string) (remote.Response[model.Profile], error) {
	as, msg, err := f.enter(ctx, "UpdateDisplayName")
	if err != nil {
		return remote.Response[model.Profile]{}, err
	}
	if msg != "" {
		return rejected[model.Profile](msg)
	}
	defer f.mu.Unlock()
	p, found := f.profiles[as]
	if !found {
		return rejected[model.Profile]("User not found")
	}
	p.DisplayName = name
	f.profiles[p.Identity] = p
	return ok(p)
}

func (f *fakeClient) CreateItem(ctx context.Context, r model.CreateItem) (remote.Response[model.Item], error) {
	as, msg, err := f.enter(ctx, "CreateItem")
	if err != nil {
		return remote.Response[model.Item]{}, err
	}
	if msg != "" {
		return rejected[model.Item](msg)
	}
	defer f.mu.Unlock()
	f.nextID++
	it := model.Item{
		ID: f.nextID, Title: r.Title, Description: r.Description, Content: r.Content,
		Author: as, Category: r.Category, Tags: r.Tags, Price: r.Price,
		IsPremium: r.IsPremium, IsPublic: r.IsPublic,
	}
	f.items[it.ID] = it
	return ok(it)
}

func (f *fakeClient) UpdateItem(ctx context.Context, u model.UpdateItem) (remote.Response[model.Item], error) {
	as, msg, err := f.enter(ctx, "UpdateItem")
	if err != nil {
		return remote.Response[model.Item]{}, err
	}
	if msg != "" {
		return rejected[model.Item](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[u.ID]
	if !found {
		return rejected[model.Item]("Prompt not found")
	}
	if it.Author != as {
		return rejected[model.Item]("Unauthorized")
	}
	if u.Title != nil {
		it.Title = *u.Title
	}
	if u.Price != nil {
		it.Price = *u.Price
	}
	if u.IsPublic != nil {
		it.IsPublic = *u.IsPublic
	}
	f.items[it.ID] = it
	return ok(it)
}

func (f *fakeClient) DeleteItem(ctx context.Context, id model.ItemID) (remote.Response[string], error) {
	as, msg, err := f.enter(ctx, "DeleteItem")
	if err != nil {
		return remote.Response[string]{}, err
	}
	if msg != "" {
		return rejected[string](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[id]
	if !found {
		return rejected[string]("Prompt not found")
	}
	if it.Author != as {
		return rejected[string]("Unauthorized")
	}
	delete(f.items, id)
	return ok("Prompt deleted successfully")
}

func (f *fakeClient) viewLocked(who model.Identity, it model.Item) model.Item {
	granted := it.Author == who || it.IsPublic
	for _, id := range f.purchases[who] {
		if id == it.ID {
			granted = true
		}
	}
	if !granted {
		it.Content = ""
	}
	return it.Clone()
}

func (f *fakeClient) GetItem(ctx context.Context, id model.ItemID) (remote.Response[model.Item], error) {
	as, msg, err := f.enter(ctx, "GetItem")
	if err != nil {
		return remote.Response[model.Item]{}, err
	}
	if msg != "" {
		return rejected[model.Item](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[id]
	if !found {
		return rejected[model.Item]("Prompt not found")
	}
	return ok(f.viewLocked(as, it))
}

func (f *fakeClient) GetItemContent(ctx context.Context, id model.ItemID) (remote.Response[string], error) {
	as, msg, err := f.enter(ctx, "GetItemContent")
	if err != nil {
		return remote.Response[string]{}, err
	}
	if msg != "" {
		return rejected[string](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[id]
	if !found {
		return rejected[string]("Prompt not found")
	}
	if v := f.viewLocked(as, it); v.Content != "" {
		return ok(v.Content)
	}
	return rejected[string]("Access denied. Purchase required.")
}

func (f *fakeClient) listLocked(as model.Identity, keep func(model.Item) bool) []model.Item {
	out := []model.Item{}
	for id := model.ItemID(0); id <= f.nextID; id++ {
		if it, found := f.items[id]; found && keep(it) {
			out = append(out, f.viewLocked(as, it))
		}
	}
	return out
}

func (f *fakeClient) ListPublicItems(ctx context.Context) (remote.Response[[]model.Item], error) {
	as, msg, err := f.enter(ctx, "ListPublicItems")
	if err != nil {
		return remote.Response[[]model.Item]{}, err
	}
	if msg != "" {
		return rejected[[]model.Item](msg)
	}
	defer f.mu.Unlock()
	return ok(f.listLocked(as, func(it model.Item) bool { return it.IsPublic }))
}

func (f *fakeClient) ListItemsByAuthor(ctx context.Context, who model.Identity) (remote.Response[[]model.Item], error) {
	as, msg, err := f.enter(ctx, "ListItemsByAuthor")
	if err != nil {
		return remote.Response[[]model.Item]{}, err
	}
	if msg != "" {
		return rejected[[]model.Item](msg)
	}
	defer f.mu.Unlock()
	return ok(f.listLocked(as, func(it model.Item) bool { return it.Author == who }))
}

func (f *fakeClient) SearchItems(ctx context.Context, text string, category *model.Category) (remote.Response[[]model.Item], error) {
	as, msg, err := f.enter(ctx, "SearchItems")
	if err != nil {
		return remote.Response[[]model.Item]{}, err
	}
	if msg != "" {
		return rejected[[]model.Item](msg)
	}
	defer f.mu.Unlock()
	text = strings.ToLower(text)
	return ok(f.listLocked(as, func(it model.Item) bool {
		if !it.IsPublic || (category != nil && it.Category != *category) {
			return false
		}
		return strings.Contains(strings.ToLower(it.Title), text)
	}))
}

func (f *fakeClient) PurchaseItem(ctx context.Context, id model.ItemID) (remote.Response[string], error) {
	who, msg, err := f.enter(ctx, "PurchaseItem")
	if err != nil {
		return remote.Response[string]{}, err
	}
	if msg != "" {
		return rejected[string](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[id]
	if !found {
		return rejected[string]("Prompt not found")
	}
	if it.Author == who {
		return rejected[string]("Cannot purchase your own prompt")
	}
	for _, p := range f.purchases[who] {
		if p == id {
			return rejected[string]("Prompt already purchased")
		}
	}
	if f.balance[who] < it.Price {
		return rejected[string]("Insufficient funds")
	}
	f.balance[who] -= it.Price
	f.balance[it.Author] += it.Price
	f.purchases[who] = append(f.purchases[who], id)
	it.Purchases++
	f.items[id] = it
	return ok("Purchase successful")
}

func (f *fakeClient) setLike(ctx context.Context, method string, id model.ItemID, like bool) (remote.Response[string], error) {
	who, msg, err := f.enter(ctx, method)
	if err != nil {
		return remote.Response[string]{}, err
	}
	if msg != "" {
		return rejected[string](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[id]
	if !found {
		return rejected[string]("Prompt not found")
	}
	if f.likes[who] == nil {
		f.likes[who] = map[model.ItemID]bool{}
	}
	switch {
	case like && f.likes[who][id]:
		return rejected[string]("Prompt already liked")
	case !like && !f.likes[who][id]:
		return rejected[string]("Prompt was not liked")
	case like:
		f.likes[who][id] = true
		it.LikeCount++
	default:
		delete(f.likes[who], id)
		it.LikeCount--
	}
	f.items[id] = it
	return ok("ok")
}

func (f *fakeClient) LikeItem(ctx context.Context, id model.ItemID) (remote.Response[string], error) {
	return f.setLike(ctx, "LikeItem", id, true)
}

func (f *fakeClient) UnlikeItem(ctx context.Context, id model.ItemID) (remote.Response[string], error) {
	return f.setLike(ctx, "UnlikeItem", id, false)
}

func (f *fakeClient) RateItem(ctx context.Context, id model.ItemID, rating model.Rating) (remote.Response[string], error) {
	_, msg, err := f.enter(ctx, "RateItem")
	if err != nil {
		return remote.Response[string]{}, err
	}
	if msg != "" {
		return rejected[string](msg)
	}
	defer f.mu.Unlock()
	it, found := f.items[id]
	if !found {
		return rejected[string]("Prompt not found")
	}
	it.Rating = float64(rating)
	it.RatingCount = 1
	f.items[id] = it
	return ok("Prompt rated successfully")
}

func (f *fakeClient) ListPurchaseIDs(ctx context.Context, who model.Identity) (remote.Response[[]model.ItemID], error) {
	_, msg, err := f.enter(ctx, "ListPurchaseIDs")
	if err != nil {
		return remote.Response[[]model.ItemID]{}, err
	}
	if msg != "" {
		return rejected[[]model.ItemID](msg)
	}
	defer f.mu.Unlock()
	return ok(append([]model.ItemID{}, f.purchases[who]...))
}

func (f *fakeClient) GetLedgerBalance(ctx context.Context, who model.Identity) (remote.Response[model.Amount], error) {
	_, msg, err := f.enter(ctx, "GetLedgerBalance")
	if err != nil {
		return remote.Response[model.Amount]{}, err
	}
	if msg != "" {
		return rejected[model.Amount](msg)
	}
	defer f.mu.Unlock()
	return ok(f.balance[who])
}

// fakeSession switches identity without a provider.
type fakeSession struct {
	mu       sync.Mutex
	cur      model.Identity
	restored model.Identity
	next     model.Identity
	loginErr error
}

func (s *fakeSession) Current() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == "" {
		return model.Anonymous
	}
	return s.cur
}

func (s *fakeSession) Restore() model.Identity {
	s.mu.Lock()
	if s.restored != "" {
		s.cur = s.restored
	}
	s.mu.Unlock()
	return s.Current()
}

func (s *fakeSession) Login(context.Context) (model.Identity, error) {
	s.mu.Lock()
	if s.loginErr != nil {
		err := s.loginErr
		s.mu.Unlock()
		return s.Current(), err
	}
	if s.next != "" {
		s.cur = s.next
	}
	s.mu.Unlock()
	return s.Current(), nil
}

func (s *fakeSession) Logout(context.Context) error {
	s.mu.Lock()
	s.cur = model.Anonymous
	s.mu.Unlock()
	return nil
}

// scriptedOnboarding answers prompts from a queue; an exhausted queue cancels.
type scriptedOnboarding struct {
	mu      sync.Mutex
	answers []Answer
	asked   []string
}

func (o *scriptedOnboarding) pop(label string) (Answer, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.asked = append(o.asked, label)
	if len(o.answers) == 0 {
		return Answer{}, false
	}
	a := o.answers[0]
	o.answers = o.answers[1:]
	return a, true
}

func (o *scriptedOnboarding) PromptNonEmpty(_ context.Context, label string) (string, error) {
	a, ok := o.pop(label)
	if !ok || a.Cancelled {
		return "", errs.ErrCancelled
	}
	return a.Value, nil
}

func (o *scriptedOnboarding) PromptOptional(_ context.Context, label string) (string, bool) {
	a, ok := o.pop(label)
	if !ok || a.Cancelled || a.Value == "" {
		return "", false
	}
	return a.Value, true
}

func (o *scriptedOnboarding) labels() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.asked...)
}
