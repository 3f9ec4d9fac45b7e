package launch

import (
	"context"

	"golang.org/x/time/rate"
)

// Gate caps how many capture processes may be spawned per second across all
// supervisors. A nil *Gate admits everything immediately.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a gate admitting perSecond launches with the given burst.
// A non-positive rate disables gating and returns nil.
func NewGate(perSecond float64, burst int) *Gate {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Gate{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a launch is admitted or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return ctx.Err()
	}
	return g.limiter.Wait(ctx)
}
