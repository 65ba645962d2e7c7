package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy describes a bounded retry: how many attempts, how long to wait
// between them, which errors are worth retrying, and what to do before
// each retry.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// Multiplier scales the delay after each retry. 1 keeps it fixed.
	Multiplier float64

	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration

	// Jitter randomises the delay by up to this fraction in either direction.
	Jitter float64

	// ShouldRetry decides whether an error is retryable. Nil means IsTransient.
	ShouldRetry func(err error) bool

	// BeforeRetry runs after a failed attempt and before the wait, typically
	// to discard and replace a broken connection. Its error is logged and
	// the retry proceeds.
	BeforeRetry func(ctx context.Context) error

	// OnRetry observes each retry with its 1-based attempt number.
	OnRetry func(attempt int, err error)
}

// FixedPolicy returns a policy with a constant delay and no jitter.
func FixedPolicy(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay, Multiplier: 1}
}

// BackoffPolicy returns an exponential policy suited to remote calls.
func BackoffPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Jitter:      0.25,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = IsTransient
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalize()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.ShouldRetry(err) || attempt == p.MaxAttempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if p.BeforeRetry != nil {
			if rerr := p.BeforeRetry(ctx); rerr != nil {
				zap.L().Warn("resilience: before-retry hook failed", zap.Error(rerr))
			}
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Delay) * math.Pow(p.Multiplier, float64(attempt))
	if p.MaxDelay > 0 {
		d = math.Min(d, float64(p.MaxDelay))
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// RetryLogger returns an OnRetry callback that logs each retry at Warn.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
