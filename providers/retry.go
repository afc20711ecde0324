package providers

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/types"
)

// RetryPolicy 定义适配器内部的重试策略。
// 重试完全是适配器内部行为，编排核心本身不做任何重试。
type RetryPolicy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟
	MaxDelay     time.Duration // 最大延迟
	Multiplier   float64       // 指数退避倍增因子
	Jitter       bool          // 随机抖动，防止雪崩
}

// DefaultRetryPolicy 返回适用于 LLM API 调用的默认策略。
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer retries a call on retryable provider errors with exponential
// backoff. Non-retryable errors (auth failures, invalid requests, contract
// violations) surface immediately.
type Retryer struct {
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryer creates a Retryer; a nil logger falls back to zap.NewNop().
func NewRetryer(policy RetryPolicy, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	return &Retryer{policy: policy, logger: logger}
}

// Do executes fn, retrying while the returned error is retryable per
// types.IsRetryable and retries remain.
func (r *Retryer) Do(ctx context.Context, fn func() (*types.ChatResponse, error)) (*types.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoffDelay(attempt)
			r.logger.Debug("retrying provider call",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *Retryer) backoffDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		delay *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}
