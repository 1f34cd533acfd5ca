package ledgertest

import (
	"context"
	"net"
	"runtime/debug"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/promptvault/internal/remote"
)

const bufSize = 1 << 20

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// NewServer returns a gRPC server with l registered.
func NewServer(l *Ledger, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(RecoverUnary(log))}, opts...)
	gs := grpc.NewServer(opts...)
	remote.RegisterLedgerServer(gs, l)
	return gs
}

// Start serves l over an in-memory listener and returns a client connection
// that sends tokens from ts. Everything is torn down with the test.
func Start(t testing.TB, l *Ledger, ts remote.TokenSource) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	gs := NewServer(l, nil)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(remote.BearerCredentials(ts, false)),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return cc
}

// StaticToken is a TokenSource with a fixed token.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token() string { return string(s) }
