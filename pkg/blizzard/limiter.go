package blizzard

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// adaptiveLimiter wraps a rate.Limiter that backs off on 429 responses.
// Success raises the rate by 20% up to the configured ceiling; a 429 halves
// it down to a quarter of the initial rate.
type adaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	maxRate rate.Limit
	minRate rate.Limit
	current rate.Limit
}

func newAdaptiveLimiter(rps float64) *adaptiveLimiter {
	initial := rate.Limit(rps)
	burst := max(int(rps/10), 1)
	return &adaptiveLimiter{
		limiter: rate.NewLimiter(initial, burst),
		maxRate: initial,
		minRate: initial / 4,
		current: initial,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) onSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current >= a.maxRate {
		return
	}
	a.current = min(a.current*1.2, a.maxRate)
	a.limiter.SetLimit(a.current)
}

func (a *adaptiveLimiter) onRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = max(a.current*0.5, a.minRate)
	a.limiter.SetLimit(a.current)
	zap.L().Warn("blizzard: reducing request rate after 429",
		zap.Float64("rate", float64(a.current)),
	)
}

func (a *adaptiveLimiter) limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
