// Package limiter paces background queries issued against the ledger.
package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates outgoing background calls.
type Limiter interface {
	// Wait blocks until a call may proceed or ctx is done.
	Wait(ctx context.Context) error
}

// Rate is a token-bucket Limiter.
type Rate struct {
	l *rate.Limiter
}

var _ Limiter = (*Rate)(nil)

// NewRate allows rps calls per second with the given burst.
// rps <= 0 disables pacing.
func NewRate(rps float64, burst int) *Rate {
	lim := rate.Inf
	if rps > 0 {
		lim = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Rate{l: rate.NewLimiter(lim, burst)}
}

// Wait blocks until a token is available.
func (r *Rate) Wait(ctx context.Context) error { return r.l.Wait(ctx) }

// Allow reports whether a call may proceed now, consuming a token if so.
func (r *Rate) Allow() bool { return r.l.Allow() }

// Unlimited never blocks.
type Unlimited struct{}

var _ Limiter = Unlimited{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
