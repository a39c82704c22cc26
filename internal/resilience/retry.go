// Package resilience provides retry and circuit-breaking helpers for calls to
// the registry, provider websites, the oracle, and remote sources.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first. Default 3.
	Attempts int
	// Backoff is the delay before the first retry. Default 250ms.
	Backoff time.Duration
	// MaxBackoff caps any single delay. Default 10s.
	MaxBackoff time.Duration
	// Multiplier scales the delay after each retry. Default 2.
	Multiplier float64
	// Jitter is a fraction of the delay added or subtracted at random.
	Jitter float64

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool
	// OnRetry is called before each sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is suitable for short HTTP lookups.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 10 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// WithAttempts returns a copy of p using n total attempts. n below 1 keeps p.
func (p Policy) WithAttempts(n int) Policy {
	if n > 0 {
		p.Attempts = n
	}
	return p
}

// Logged returns a copy of p that logs each retry under the given dependency
// and operation names.
func (p Policy) Logged(dependency, operation string) Policy {
	p.OnRetry = func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("dependency", dependency),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == p.Attempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
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

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(p.Multiplier, float64(attempt))
	d = math.Min(d, float64(p.MaxBackoff))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}
