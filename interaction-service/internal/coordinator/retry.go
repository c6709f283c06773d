package coordinator

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds how a contended toggle is retried. The delay before
// retry n (n = index of the attempt that just failed) is BaseDelay*(n+1)
// plus up to Jitter*that delay.
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Jitter      float64       `mapstructure:"jitter"`
}

// DefaultRetryPolicy returns 3 attempts with 20ms linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Delay returns the wait after the given failed attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	d := p.BaseDelay * time.Duration(attempt+1)
	if p.Jitter > 0 && d > 0 {
		if span := int64(float64(d) * p.Jitter); span > 0 {
			d += time.Duration(rand.Int63n(span))
		}
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
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
