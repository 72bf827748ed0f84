package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out operations to at most one per interval, optionally adding
// a random extra delay. A nil or zero-rate Limiter never blocks. Safe for
// concurrent use.
type Limiter struct {
	lim      *rate.Limiter
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
}

// NewLimiter creates a limiter allowing rps operations per second. jitter is
// clamped to [0, 1] and scales the random extra delay added after each wait.
// rps <= 0 disables limiting.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return Every(time.Duration(float64(time.Second)/rps), jitter)
}

// Every creates a limiter allowing one operation per interval. interval <= 0
// disables limiting.
func Every(interval time.Duration, jitter float64) *Limiter {
	if interval <= 0 {
		return &Limiter{}
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{
		lim:      rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		jitter:   jitter,
	}
}

// Interval returns the minimum spacing between operations.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the next operation may proceed or ctx is done.
// The first call never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	if l.jitter <= 0 {
		return nil
	}

	extra := time.Duration(rand.Float64() * l.jitter * float64(l.interval))
	if extra <= 0 {
		return nil
	}
	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
