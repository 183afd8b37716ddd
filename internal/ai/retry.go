package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	defaultAttempts    = 3
	defaultTimeout     = 120 * time.Second
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = 8 * time.Second
)

// RetryPolicy bounds how long and how often a provider call is attempted.
type RetryPolicy struct {
	Attempts    int           // total attempts, including the first
	Timeout     time.Duration // per attempt
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

type retryingProvider struct {
	next   Provider
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps p so every Infer call gets a per-attempt timeout and is
// retried with exponential backoff on transient failures. Zero policy fields
// take defaults.
func NewRetrying(p Provider, policy RetryPolicy) Provider {
	if policy.Attempts < 1 {
		policy.Attempts = defaultAttempts
	}
	if policy.Timeout <= 0 {
		policy.Timeout = defaultTimeout
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = defaultBaseBackoff
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = defaultMaxBackoff
	}
	return &retryingProvider{next: p, policy: policy, sleep: sleepCtx}
}

func (r *retryingProvider) Name() string {
	return r.next.Name()
}

func (r *retryingProvider) Infer(ctx context.Context, system string, messages []Message, opts InferOptions) (*InferResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		result, err := r.next.Infer(attemptCtx, system, messages, opts)
		cancel()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", r.policy.Attempts, lastErr)
}

func (r *retryingProvider) backoff(attempt int) time.Duration {
	delay := r.policy.BaseBackoff
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= r.policy.MaxBackoff {
			return r.policy.MaxBackoff
		}
	}
	if delay > r.policy.MaxBackoff {
		delay = r.policy.MaxBackoff
	}
	return delay
}

// IsTransient reports whether err is worth retrying: rate limits, server
// errors and timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
