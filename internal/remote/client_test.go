package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/ledgertest"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/remote"
)

const (
	author = model.Identity("rwlgt-iiaaa-aaaaa-aaaaa-cai")
	buyer  = model.Identity("rrkah-fqaaa-aaaaa-aaaaq-cai")
)

func setup(t *testing.T, who model.Identity) (*ledgertest.Ledger, *remote.GRPCClient) {
	t.Helper()
	l := ledgertest.New([]byte("secret"))
	var ts ledgertest.StaticToken
	if !who.IsAnonymous() {
		tok, err := l.Issue(who, time.Hour)
		require.NoError(t, err)
		ts = ledgertest.StaticToken(tok)
	}
	cc := ledgertest.Start(t, l, ts)
	return l, remote.NewGRPCClient(cc, ts, nil)
}

func seedPremium(l *ledgertest.Ledger, price model.Amount) model.ItemID {
	l.SeedProfile(model.Profile{Identity: author, DisplayName: "alice"})
	return l.SeedItem(model.Item{
		Title: "Cold email", Content: "secret body", Author: author,
		Category: model.CategoryMarketing, Price: price, IsPremium: true,
	})
}

func TestGetItem_AnonymousSeesNoContent(t *testing.T) {
	t.Parallel()
	l, c := setup(t, model.Anonymous)
	id := seedPremium(l, 100)

	resp, err := c.GetItem(context.Background(), id)
	require.NoError(t, err)
	it, err := resp.Value()
	require.NoError(t, err)
	require.Equal(t, id, it.ID)
	require.Equal(t, author, it.Author)
	require.Equal(t, model.CategoryMarketing, it.Category)
	require.Empty(t, it.Content)
}

func TestMutations_AnonymousFailFast(t *testing.T) {
	t.Parallel()
	l, c := setup(t, model.Anonymous)
	id := seedPremium(l, 100)
	ctx := context.Background()

	_, err := c.PurchaseItem(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)
	_, err = c.LikeItem(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)
	_, err = c.RateItem(ctx, id, 5)
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)
	_, err = c.CreateItem(ctx, model.CreateItem{Title: "x", Content: "y", Category: model.CategoryOther})
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)
	_, err = c.RegisterIdentity(ctx, "bob", "")
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)

	require.Empty(t, l.Calls(), "nothing may reach the ledger")
}

func TestPurchase_SettlesOnceWithIdempotencyKeys(t *testing.T) {
	t.Parallel()
	l, c := setup(t, buyer)
	id := seedPremium(l, 5*model.MinorPerMajor)
	l.Fund(buyer, 10*model.MinorPerMajor)
	ctx := context.Background()

	resp, err := c.PurchaseItem(ctx, id)
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	resp, err = c.PurchaseItem(ctx, id)
	require.NoError(t, err, "a ledger rejection is not a transport error")
	perr := resp.Err()
	require.ErrorIs(t, perr, errs.ErrUnauthorized)
	require.Equal(t, "Prompt already purchased", perr.Error())

	calls := l.CallsTo(remote.MethodPurchaseItem)
	require.Len(t, calls, 2)
	require.NotEmpty(t, calls[0].IdempotencyKey)
	require.NotEqual(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey)
	require.Equal(t, buyer, calls[0].Caller)

	ids, err := c.ListPurchaseIDs(ctx, buyer)
	require.NoError(t, err)
	got, err := ids.Value()
	require.NoError(t, err)
	require.Equal(t, []model.ItemID{id}, got)

	bal, err := c.GetLedgerBalance(ctx, buyer)
	require.NoError(t, err)
	amt, err := bal.Value()
	require.NoError(t, err)
	require.Equal(t, model.Amount(5*model.MinorPerMajor), amt)

	content, err := c.GetItemContent(ctx, id)
	require.NoError(t, err)
	body, err := content.Value()
	require.NoError(t, err)
	require.Equal(t, "secret body", body)
}

func TestReads_CarryNoIdempotencyKey(t *testing.T) {
	t.Parallel()
	l, c := setup(t, buyer)
	seedPremium(l, 0)

	_, err := c.ListPublicItems(context.Background())
	require.NoError(t, err)
	calls := l.CallsTo(remote.MethodListPublicItems)
	require.Len(t, calls, 1)
	require.Empty(t, calls[0].IdempotencyKey)
}

func TestCreateUpdateDelete_RoundTrip(t *testing.T) {
	t.Parallel()
	l, c := setup(t, author)
	l.SeedProfile(model.Profile{Identity: author, DisplayName: "alice"})
	ctx := context.Background()

	resp, err := c.CreateItem(ctx, model.CreateItem{
		Title: "  Haiku  ", Content: "five seven five", Category: model.CategoryCreative,
		Tags: []string{"poem"}, IsPublic: true,
	})
	require.NoError(t, err)
	it, err := resp.Value()
	require.NoError(t, err)
	require.Equal(t, "Haiku", it.Title)
	require.Equal(t, author, it.Author)

	title := "Senryu"
	up, err := c.UpdateItem(ctx, model.UpdateItem{ID: it.ID, Title: &title})
	require.NoError(t, err)
	updated, err := up.Value()
	require.NoError(t, err)
	require.Equal(t, "Senryu", updated.Title)
	require.Equal(t, []string{"poem"}, updated.Tags)

	mine, err := c.ListItemsByAuthor(ctx, author)
	require.NoError(t, err)
	list, err := mine.Value()
	require.NoError(t, err)
	require.Len(t, list, 1)

	del, err := c.DeleteItem(ctx, it.ID)
	require.NoError(t, err)
	require.NoError(t, del.Err())

	gone, err := c.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.ErrorIs(t, gone.Err(), errs.ErrNotFound)
}

func TestSearch_ByCategory(t *testing.T) {
	t.Parallel()
	l, c := setup(t, model.Anonymous)
	l.SeedItem(model.Item{Title: "SQL helper", Author: author, Category: model.CategoryDevelopment, IsPublic: true})
	l.SeedItem(model.Item{Title: "SQL ad copy", Author: author, Category: model.CategoryMarketing, IsPublic: true})

	cat := model.CategoryDevelopment
	resp, err := c.SearchItems(context.Background(), "sql", &cat)
	require.NoError(t, err)
	got, err := resp.Value()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "SQL helper", got[0].Title)
}

func TestLedgerFailure_VerbatimMessage(t *testing.T) {
	t.Parallel()
	l, c := setup(t, buyer)
	l.FailNext(remote.MethodListPublicItems, "Canister is stopping")

	resp, err := c.ListPublicItems(context.Background())
	require.NoError(t, err)
	require.False(t, resp.Success)
	perr := resp.Err()
	require.ErrorIs(t, perr, errs.ErrRejected)
	require.Equal(t, "Canister is stopping", perr.Error())
}

// fakeConn answers every Invoke with a canned JSON reply or error.
type fakeConn struct {
	reply string
	err   error
	calls int
}

var _ grpc.ClientConnInterface = (*fakeConn)(nil)

func (f *fakeConn) Invoke(_ context.Context, _ string, _, reply any, _ ...grpc.CallOption) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), reply)
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not supported")
}

func TestTransportErrors_Mapped(t *testing.T) {
	t.Parallel()
	cases := map[codes.Code]error{
		codes.Unavailable:      errs.ErrRemoteUnavailable,
		codes.DeadlineExceeded: errs.ErrRemoteUnavailable,
		codes.Unauthenticated:  errs.ErrNotAuthenticated,
		codes.PermissionDenied: errs.ErrUnauthorized,
		codes.NotFound:         errs.ErrNotFound,
		codes.InvalidArgument:  errs.ErrInvalidInput,
		codes.Internal:         errs.ErrRemoteUnavailable,
	}
	for code, want := range cases {
		f := &fakeConn{err: status.Error(code, "boom")}
		c := remote.NewGRPCClient(f, ledgertest.StaticToken("t"), nil)
		_, err := c.PurchaseItem(context.Background(), 1)
		if !errors.Is(err, want) {
			t.Fatalf("%s: got %v, want %v", code, err, want)
		}
		if f.calls != 1 {
			t.Fatalf("%s: %d attempts, want exactly one", code, f.calls)
		}
	}
}

func TestUnknownCategory_FailsDecode(t *testing.T) {
	t.Parallel()
	f := &fakeConn{reply: `{"success":true,"data":{"id":3,"author":"2vxsx-fae","category":{"Astrology":null}}}`}
	c := remote.NewGRPCClient(f, nil, nil)

	_, err := c.GetItem(context.Background(), 3)
	require.ErrorIs(t, err, errs.ErrRejected)
}

func TestValue_EmptyPayloadRejected(t *testing.T) {
	t.Parallel()
	r := remote.Response[string]{Success: true}
	_, err := r.Value()
	require.ErrorIs(t, err, errs.ErrRejected)
}

func TestNotFound_FromLedger(t *testing.T) {
	t.Parallel()
	_, c := setup(t, model.Anonymous)
	resp, err := c.GetProfile(context.Background(), buyer)
	require.NoError(t, err)
	require.ErrorIs(t, resp.Err(), errs.ErrNotFound)
}
