package remote

import (
	"context"

	"google.golang.org/grpc"

	"github.com/and161185/promptvault/internal/wire"
)

// ServiceName is the fully-qualified gRPC service of the ledger.
const ServiceName = "promptvault.v1.Ledger"

// LedgerServer is implemented by a ledger backend. Each reply is an envelope;
// a returned error is reserved for transport-level failures.
type LedgerServer interface {
	RegisterIdentity(context.Context, *wire.RegisterRequest) (*wire.Envelope[wire.Profile], error)
	GetProfile(context.Context, *wire.IdentityRequest) (*wire.Envelope[wire.Profile], error)
	UpdateDisplayName(context.Context, *wire.UpdateDisplayNameRequest) (*wire.Envelope[wire.Profile], error)
	CreateItem(context.Context, *wire.CreateItemRequest) (*wire.Envelope[wire.Item], error)
	UpdateItem(context.Context, *wire.UpdateItemRequest) (*wire.Envelope[wire.Item], error)
	DeleteItem(context.Context, *wire.ItemIDRequest) (*wire.Envelope[string], error)
	GetItem(context.Context, *wire.ItemIDRequest) (*wire.Envelope[wire.Item], error)
	GetItemContent(context.Context, *wire.ItemIDRequest) (*wire.Envelope[string], error)
	ListPublicItems(context.Context, *wire.Empty) (*wire.Envelope[[]wire.Item], error)
	ListItemsByAuthor(context.Context, *wire.IdentityRequest) (*wire.Envelope[[]wire.Item], error)
	SearchItems(context.Context, *wire.SearchRequest) (*wire.Envelope[[]wire.Item], error)
	PurchaseItem(context.Context, *wire.ItemIDRequest) (*wire.Envelope[string], error)
	LikeItem(context.Context, *wire.ItemIDRequest) (*wire.Envelope[string], error)
	UnlikeItem(context.Context, *wire.ItemIDRequest) (*wire.Envelope[string], error)
	RateItem(context.Context, *wire.RateRequest) (*wire.Envelope[string], error)
	ListPurchaseIds(context.Context, *wire.IdentityRequest) (*wire.Envelope[[]uint64], error)
	GetLedgerBalance(context.Context, *wire.IdentityRequest) (*wire.Envelope[uint64], error)
}

// Method names on the wire.
const (
	MethodRegisterIdentity  = "RegisterIdentity"
	MethodGetProfile        = "GetProfile"
	MethodUpdateDisplayName = "UpdateDisplayName"
	MethodCreateItem        = "CreateItem"
	MethodUpdateItem        = "UpdateItem"
	MethodDeleteItem        = "DeleteItem"
	MethodGetItem           = "GetItem"
	MethodGetItemContent    = "GetItemContent"
	MethodListPublicItems   = "ListPublicItems"
	MethodListItemsByAuthor = "ListItemsByAuthor"
	MethodSearchItems       = "SearchItems"
	MethodPurchaseItem      = "PurchaseItem"
	MethodLikeItem          = "LikeItem"
	MethodUnlikeItem        = "UnlikeItem"
	MethodRateItem          = "RateItem"
	MethodListPurchaseIds   = "ListPurchaseIds"
	MethodGetLedgerBalance  = "GetLedgerBalance"
)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes the ledger service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegisterIdentity, LedgerServer.RegisterIdentity),
		unary(MethodGetProfile, LedgerServer.GetProfile),
		unary(MethodUpdateDisplayName, LedgerServer.UpdateDisplayName),
		unary(MethodCreateItem, LedgerServer.CreateItem),
		unary(MethodUpdateItem, LedgerServer.UpdateItem),
		unary(MethodDeleteItem, LedgerServer.DeleteItem),
		unary(MethodGetItem, LedgerServer.GetItem),
		unary(MethodGetItemContent, LedgerServer.GetItemContent),
		unary(MethodListPublicItems, LedgerServer.ListPublicItems),
		unary(MethodListItemsByAuthor, LedgerServer.ListItemsByAuthor),
		unary(MethodSearchItems, LedgerServer.SearchItems),
		unary(MethodPurchaseItem, LedgerServer.PurchaseItem),
		unary(MethodLikeItem, LedgerServer.LikeItem),
		unary(MethodUnlikeItem, LedgerServer.UnlikeItem),
		unary(MethodRateItem, LedgerServer.RateItem),
		unary(MethodListPurchaseIds, LedgerServer.ListPurchaseIds),
		unary(MethodGetLedgerBalance, LedgerServer.GetLedgerBalance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "promptvault/v1/ledger",
}

// RegisterLedgerServer attaches a ledger backend to s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
