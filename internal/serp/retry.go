package serp

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryPolicy is a linear backoff: after failed attempt n the caller sleeps
// n*BaseDelay before attempt n+1.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// sleep is swapped out in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	} else if p.BaseDelay == 0 {
		p.BaseDelay = defaultBaseDelay
	}
	return p
}

// Do runs fn until it succeeds or the attempts are spent. It returns the number
// of attempts made and the last error. onRetry, if set, is called before each
// backoff sleep.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) (int, error) {
	p = p.withDefaults()

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		if attempt == p.MaxAttempts {
			return attempt, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if sleepErr := sleep(ctx, time.Duration(attempt)*p.BaseDelay); sleepErr != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, err
}
