package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter 包装 x/time/rate，为单个适配器提供可选的请求限流。
// rps <= 0 时不限流。
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a per-adapter request limiter. A non-positive rps
// returns a no-op limiter.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next request is allowed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
