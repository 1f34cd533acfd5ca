package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
)

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	ok := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error { return nil }
	if err := ic(context.Background(), "/promptvault.v1.Ledger/GetItem", "req", nil, nil, ok); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	wantErr := errors.New("boom")
	bad := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error { return wantErr }
	if err := ic(context.Background(), "/promptvault.v1.Ledger/GetItem", "req", nil, nil, bad); !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestTimeoutUnary_AddsDeadlineOnlyWhenMissing(t *testing.T) {
	t.Parallel()

	var got time.Time
	var had bool
	inv := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		got, had = ctx.Deadline()
		return nil
	}

	_ = TimeoutUnary(time.Minute)(context.Background(), "m", nil, nil, nil, inv)
	if !had || time.Until(got) > time.Minute {
		t.Fatalf("want a deadline within a minute, got %v %v", got, had)
	}

	own, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := own.Deadline()
	_ = TimeoutUnary(time.Minute)(own, "m", nil, nil, nil, inv)
	if !got.Equal(want) {
		t.Fatalf("caller deadline must win: got %v want %v", got, want)
	}

	_ = TimeoutUnary(0)(context.Background(), "m", nil, nil, nil, inv)
	if had {
		t.Fatalf("zero timeout must not add a deadline")
	}
}
