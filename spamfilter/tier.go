package spamfilter

import (
	"context"
	"time"
)

// Tier is one storage layer of keyword counters
type Tier interface {
	Name() string
	// Increment records one occurrence of token and returns how many
	// occurrences inside the window preceded it.
	Increment(ctx context.Context, token string, window time.Duration) (int64, error)
	// Reset deletes every counter and returns how many were removed.
	Reset(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Sweeper is implemented by tiers that need stale counters removed explicitly
type Sweeper interface {
	Sweep(ctx context.Context, window time.Duration) (int64, error)
}
