// Package retry runs an operation with exponential backoff. Push delivery
// and the initial database connect use it for transient upstream failures.
package retry

import (
	"context"
	"math/rand"
	"time"
)

type Config struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// WithBackoff calls fn until it succeeds, the attempt budget runs out, or
// ctx is canceled. The wait between attempts grows by cfg.Multiplier and is
// jittered to keep concurrent retriers from synchronizing.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	wait := cfg.InitialWait

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return lastErr
		}

		select {
		case <-time.After(jittered(wait, cfg.MaxWait)):
		case <-ctx.Done():
			return ctx.Err()
		}

		wait = time.Duration(float64(wait) * cfg.Multiplier)
	}
}

// jittered stretches the base wait by up to 30% and caps it at max.
func jittered(base, max time.Duration) time.Duration {
	wait := base + time.Duration(rand.Float64()*0.3*float64(base))
	if wait > max {
		return max
	}
	return wait
}
