// Package remote is the typed call surface to the ledger service.
//
// Every operation returns the ledger's {success, data, error} envelope as a
// Response. The returned error is non-nil only when no verdict was obtained:
// a missing session, a transport failure or a malformed payload. Nothing here
// retries; callers own retry policy.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/promptvault/internal/convert"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
	"github.com/and161185/promptvault/internal/wire"
)

// IdempotencyKeyHeader carries a fresh key on every mutating call.
const IdempotencyKeyHeader = "x-idempotency-key"

// Response is the ledger's verdict on one call.
type Response[T any] struct {
	Success bool
	Data    *T
	Error   string
}

// Err returns nil on success, otherwise the ledger's error classified but verbatim.
func (r Response[T]) Err() error {
	if r.Success {
		return nil
	}
	return errs.FromRemote(r.Error)
}

// Value returns the payload of a successful response.
func (r Response[T]) Value() (T, error) {
	var zero T
	if err := r.Err(); err != nil {
		return zero, err
	}
	if r.Data == nil {
		return zero, fmt.Errorf("%w: empty payload", errs.ErrRejected)
	}
	return *r.Data, nil
}

// Client is the RemoteServiceClient contract.
type Client interface {
	RegisterIdentity(ctx context.Context, displayName, email string) (Response[model.Profile], error)
	GetProfile(ctx context.Context, who model.Identity) (Response[model.Profile], error)
	UpdateDisplayName(ctx context.Context, name string) (Response[model.Profile], error)
	CreateItem(ctx context.Context, req model.CreateItem) (Response[model.Item], error)
	UpdateItem(ctx context.Context, req model.UpdateItem) (Response[model.Item], error)
	DeleteItem(ctx context.Context, id model.ItemID) (Response[string], error)
	GetItem(ctx context.Context, id model.ItemID) (Response[model.Item], error)
	GetItemContent(ctx context.Context, id model.ItemID) (Response[string], error)
	ListPublicItems(ctx context.Context) (Response[[]model.Item], error)
	ListItemsByAuthor(ctx context.Context, who model.Identity) (Response[[]model.Item], error)
	SearchItems(ctx context.Context, text string, category *model.Category) (Response[[]model.Item], error)
	PurchaseItem(ctx context.Context, id model.ItemID) (Response[string], error)
	LikeItem(ctx context.Context, id model.ItemID) (Response[string], error)
	UnlikeItem(ctx context.Context, id model.ItemID) (Response[string], error)
	RateItem(ctx context.Context, id model.ItemID, rating model.Rating) (Response[string], error)
	ListPurchaseIDs(ctx context.Context, who model.Identity) (Response[[]model.ItemID], error)
	GetLedgerBalance(ctx context.Context, who model.Identity) (Response[model.Amount], error)
}

// TokenSource yields the bearer token of the current identity; empty means anonymous.
type TokenSource interface {
	Token() string
}

// GRPCClient implements Client over a gRPC connection using the JSON codec.
type GRPCClient struct {
	cc     grpc.ClientConnInterface
	tokens TokenSource
	log    *zap.Logger
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient wraps cc. tokens gates calls that require an authenticated session.
func NewGRPCClient(cc grpc.ClientConnInterface, tokens TokenSource, log *zap.Logger) *GRPCClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCClient{cc: cc, tokens: tokens, log: log}
}

func (c *GRPCClient) requireAuth() error {
	if c.tokens == nil || c.tokens.Token() == "" {
		return errs.ErrNotAuthenticated
	}
	return nil
}

// invoke performs one unary call and maps transport failures.
func invoke[Req, Resp any](ctx context.Context, c *GRPCClient, method string, mutating bool, req *Req) (*wire.Envelope[Resp], error) {
	if mutating {
		key, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("idempotency key: %w", err)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, IdempotencyKeyHeader, key.String())
	}
	out := new(wire.Envelope[Resp])
	if err := c.cc.Invoke(ctx, fullMethod(method), req, out, grpc.ForceCodec(wire.Codec{})); err != nil {
		return nil, mapTransportErr(method, err)
	}
	return out, nil
}

func mapTransportErr(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", errs.ErrRemoteUnavailable, method, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %s: %w", errs.ErrRemoteUnavailable, method, err)
	}
	var kind error
	switch st.Code() {
	case codes.Unauthenticated:
		kind = errs.ErrNotAuthenticated
	case codes.PermissionDenied:
		kind = errs.ErrUnauthorized
	case codes.NotFound:
		kind = errs.ErrNotFound
	case codes.InvalidArgument:
		kind = errs.ErrInvalidInput
	default:
		kind = errs.ErrRemoteUnavailable
	}
	return fmt.Errorf("%w: %s: %s", kind, method, st.Message())
}

// envelope converts a wire envelope, mapping its payload with conv.
func envelope[W, T any](env *wire.Envelope[W], conv func(W) (T, error)) (Response[T], error) {
	r := Response[T]{Success: env.Success}
	if env.Error != nil {
		r.Error = *env.Error
	}
	if !env.Success || env.Data == nil {
		return r, nil
	}
	v, err := conv(*env.Data)
	if err != nil {
		return Response[T]{}, fmt.Errorf("%w: decode payload: %w", errs.ErrRejected, err)
	}
	r.Data = &v
	return r, nil
}

func same[T any](v T) (T, error) { return v, nil }

// RegisterIdentity creates the caller's profile.
func (c *GRPCClient) RegisterIdentity(ctx context.Context, displayName, email string) (Response[model.Profile], error) {
	if err := c.requireAuth(); err != nil {
		return Response[model.Profile]{}, err
	}
	req := convert.ToWireRegister(displayName, email)
	env, err := invoke[wire.RegisterRequest, wire.Profile](ctx, c, MethodRegisterIdentity, true, &req)
	if err != nil {
		return Response[model.Profile]{}, err
	}
	return envelope(env, convert.FromWireProfile)
}

// GetProfile looks up the profile of who.
func (c *GRPCClient) GetProfile(ctx context.Context, who model.Identity) (Response[model.Profile], error) {
	env, err := invoke[wire.IdentityRequest, wire.Profile](ctx, c, MethodGetProfile, false, &wire.IdentityRequest{Identity: who.String()})
	if err != nil {
		return Response[model.Profile]{}, err
	}
	return envelope(env, convert.FromWireProfile)
}

// UpdateDisplayName renames the caller.
func (c *GRPCClient) UpdateDisplayName(ctx context.Context, name string) (Response[model.Profile], error) {
	if err := c.requireAuth(); err != nil {
		return Response[model.Profile]{}, err
	}
	env, err := invoke[wire.UpdateDisplayNameRequest, wire.Profile](ctx, c, MethodUpdateDisplayName, true, &wire.UpdateDisplayNameRequest{Username: name})
	if err != nil {
		return Response[model.Profile]{}, err
	}
	return envelope(env, convert.FromWireProfile)
}

// CreateItem publishes a new item authored by the caller.
func (c *GRPCClient) CreateItem(ctx context.Context, r model.CreateItem) (Response[model.Item], error) {
	if err := c.requireAuth(); err != nil {
		return Response[model.Item]{}, err
	}
	req, err := convert.ToWireCreate(r)
	if err != nil {
		return Response[model.Item]{}, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	env, err := invoke[wire.CreateItemRequest, wire.Item](ctx, c, MethodCreateItem, true, &req)
	if err != nil {
		return Response[model.Item]{}, err
	}
	return envelope(env, convert.FromWireItem)
}

// UpdateItem changes the set fields of an item the caller authored.
func (c *GRPCClient) UpdateItem(ctx context.Context, u model.UpdateItem) (Response[model.Item], error) {
	if err := c.requireAuth(); err != nil {
		return Response[model.Item]{}, err
	}
	req, err := convert.ToWireUpdate(u)
	if err != nil {
		return Response[model.Item]{}, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
	}
	env, err := invoke[wire.UpdateItemRequest, wire.Item](ctx, c, MethodUpdateItem, true, &req)
	if err != nil {
		return Response[model.Item]{}, err
	}
	return envelope(env, convert.FromWireItem)
}

// DeleteItem removes an item the caller authored.
func (c *GRPCClient) DeleteItem(ctx context.Context, id model.ItemID) (Response[string], error) {
	return c.itemMutation(ctx, MethodDeleteItem, id)
}

// GetItem fetches an item; content may be withheld.
func (c *GRPCClient) GetItem(ctx context.Context, id model.ItemID) (Response[model.Item], error) {
	env, err := invoke[wire.ItemIDRequest, wire.Item](ctx, c, MethodGetItem, false, &wire.ItemIDRequest{ID: uint64(id)})
	if err != nil {
		return Response[model.Item]{}, err
	}
	return envelope(env, convert.FromWireItem)
}

// GetItemContent fetches protected content if the ledger grants it to the caller.
func (c *GRPCClient) GetItemContent(ctx context.Context, id model.ItemID) (Response[string], error) {
	env, err := invoke[wire.ItemIDRequest, string](ctx, c, MethodGetItemContent, false, &wire.ItemIDRequest{ID: uint64(id)})
	if err != nil {
		return Response[string]{}, err
	}
	return envelope(env, same[string])
}

// ListPublicItems lists every public item.
func (c *GRPCClient) ListPublicItems(ctx context.Context) (Response[[]model.Item], error) {
	env, err := invoke[wire.Empty, []wire.Item](ctx, c, MethodListPublicItems, false, &wire.Empty{})
	if err != nil {
		return Response[[]model.Item]{}, err
	}
	return envelope(env, convert.FromWireItems)
}

// ListItemsByAuthor lists items authored by who.
func (c *GRPCClient) ListItemsByAuthor(ctx context.Context, who model.Identity) (Response[[]model.Item], error) {
	env, err := invoke[wire.IdentityRequest, []wire.Item](ctx, c, MethodListItemsByAuthor, false, &wire.IdentityRequest{Identity: who.String()})
	if err != nil {
		return Response[[]model.Item]{}, err
	}
	return envelope(env, convert.FromWireItems)
}

// SearchItems runs the ledger's text search, optionally within one category.
func (c *GRPCClient) SearchItems(ctx context.Context, text string, category *model.Category) (Response[[]model.Item], error) {
	req := wire.SearchRequest{Query: text}
	if category != nil {
		raw, err := convert.ToWireCategory(*category)
		if err != nil {
			return Response[[]model.Item]{}, fmt.Errorf("%w: %w", errs.ErrInvalidInput, err)
		}
		req.Category = raw
	}
	env, err := invoke[wire.SearchRequest, []wire.Item](ctx, c, MethodSearchItems, false, &req)
	if err != nil {
		return Response[[]model.Item]{}, err
	}
	return envelope(env, convert.FromWireItems)
}

// PurchaseItem buys an item. Non-refundable; never retried here.
func (c *GRPCClient) PurchaseItem(ctx context.Context, id model.ItemID) (Response[string], error) {
	return c.itemMutation(ctx, MethodPurchaseItem, id)
}

// LikeItem likes an item.
func (c *GRPCClient) LikeItem(ctx context.Context, id model.ItemID) (Response[string], error) {
	return c.itemMutation(ctx, MethodLikeItem, id)
}

// UnlikeItem removes the caller's like.
func (c *GRPCClient) UnlikeItem(ctx context.Context, id model.ItemID) (Response[string], error) {
	return c.itemMutation(ctx, MethodUnlikeItem, id)
}

// RateItem rates an item; a later rating replaces an earlier one.
func (c *GRPCClient) RateItem(ctx context.Context, id model.ItemID, rating model.Rating) (Response[string], error) {
	if err := c.requireAuth(); err != nil {
		return Response[string]{}, err
	}
	env, err := invoke[wire.RateRequest, string](ctx, c, MethodRateItem, true, &wire.RateRequest{ItemID: uint64(id), Rating: uint8(rating)})
	if err != nil {
		return Response[string]{}, err
	}
	return envelope(env, same[string])
}

// ListPurchaseIDs returns the ids of items who has purchased.
func (c *GRPCClient) ListPurchaseIDs(ctx context.Context, who model.Identity) (Response[[]model.ItemID], error) {
	env, err := invoke[wire.IdentityRequest, []uint64](ctx, c, MethodListPurchaseIds, false, &wire.IdentityRequest{Identity: who.String()})
	if err != nil {
		return Response[[]model.ItemID]{}, err
	}
	return envelope(env, func(ids []uint64) ([]model.ItemID, error) { return convert.FromWireItemIDs(ids), nil })
}

// GetLedgerBalance returns who's balance on the payment ledger.
func (c *GRPCClient) GetLedgerBalance(ctx context.Context, who model.Identity) (Response[model.Amount], error) {
	env, err := invoke[wire.IdentityRequest, uint64](ctx, c, MethodGetLedgerBalance, false, &wire.IdentityRequest{Identity: who.String()})
	if err != nil {
		return Response[model.Amount]{}, err
	}
	return envelope(env, func(v uint64) (model.Amount, error) { return model.Amount(v), nil })
}

func (c *GRPCClient) itemMutation(ctx context.Context, method string, id model.ItemID) (Response[string], error) {
	if err := c.requireAuth(); err != nil {
		return Response[string]{}, err
	}
	env, err := invoke[wire.ItemIDRequest, string](ctx, c, method, true, &wire.ItemIDRequest{ID: uint64(id)})
	if err != nil {
		return Response[string]{}, err
	}
	return envelope(env, same[string])
}
