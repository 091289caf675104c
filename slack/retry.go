package slack

import (
	"context"
	"math"
	"time"
)

// RetryPolicy controls redelivery of a failed webhook call
type RetryPolicy struct {
	// MaxAttempts counts the first try; 1 disables retries
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// JitterFraction spreads each delay uniformly over ±fraction of itself
	JitterFraction float64
}

// DefaultRetryPolicy is one try plus three retries starting at 2s with ±75% jitter
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		BaseDelay:      2 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.75,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.JitterFraction > 1 {
		p.JitterFraction = 1
	}
	return p
}

// Backoff returns the delay before retry number n (1-based). rnd must return
// values in [0, 1).
func (p RetryPolicy) Backoff(n int, rnd func() float64) time.Duration {
	p = p.withDefaults()
	if n < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 && rnd != nil {
		spread := d * p.JitterFraction
		d = d - spread + 2*spread*rnd()
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

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
