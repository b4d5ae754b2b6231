// Package resilience retries calls to flaky upstream services.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how a call is retried.
type Policy struct {
	// Attempts is the total number of tries, the first included. Default 3.
	Attempts int

	// Pause is the delay before the first retry. Default 1s.
	Pause time.Duration

	// MaxPause caps the delay. Default 30s.
	MaxPause time.Duration

	// Multiplier grows the delay after each retry. 1 keeps it fixed.
	Multiplier float64

	// Jitter randomises the delay by up to this fraction either way.
	Jitter float64

	// ShouldRetry decides whether an error is worth another try.
	// Nil means Retryable.
	ShouldRetry func(err error) bool

	// OnRetry runs before each pause with the attempt just failed.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is three attempts with a fixed one second pause.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Pause:      time.Second,
		MaxPause:   30 * time.Second,
		Multiplier: 1,
	}
}

// FromConfig builds a fixed-pause policy from integer config values. Values
// not greater than zero keep the default.
func FromConfig(attempts, pauseMs int) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if pauseMs > 0 {
		p.Pause = time.Duration(pauseMs) * time.Millisecond
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// policy, or ctx ends.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.ShouldRetry(err) || attempt == p.Attempts {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Pause < 0 {
		p.Pause = 0
	}
	if p.MaxPause <= 0 {
		p.MaxPause = def.MaxPause
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = Retryable
	}
	return p
}

// delay is the pause after the given failed attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Pause) * math.Pow(p.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(p.MaxPause))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
