package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter paces requests and adapts to backend pressure: each
// success raises the rate by 20% up to twice the initial rate, and each 429
// halves it down to a quarter of the initial rate.
type AdaptiveLimiter struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	initial  rate.Limit
	current  rate.Limit
	floor   rate.Limit
	ceil    rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at perSec with burst.
func NewAdaptiveLimiter(perSec float64, burst int) *AdaptiveLimiter {
	l := rate.Limit(perSec)
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{
		lim:     rate.NewLimiter(l, burst),
		initial: l,
		current: l,
		floor:   l / 4,
		ceil:    l * 2,
	}
}

// Wait blocks until a request may proceed.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error { return a.lim.Wait(ctx) }

// OnSuccess speeds the limiter up.
func (a *AdaptiveLimiter) OnSuccess() { a.scale(1.2) }

// OnThrottle slows the limiter down after a 429.
func (a *AdaptiveLimiter) OnThrottle() {
	a.scale(0.5)
	zap.L().Warn("fetcher: throttled, reducing request rate", zap.Float64("rate", float64(a.Limit())))
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) scale(f float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * rate.Limit(f)
	next = min(max(next, a.floor), a.ceil)
	a.current = next
	a.lim.SetLimit(next)
}
