package pollstate

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store persists channel watermarks. AdvanceWatermark must itself refuse to
// move a watermark backwards.
type Store interface {
	GetWatermark(ctx context.Context, channel string) (time.Time, bool, error)
	AdvanceWatermark(ctx context.Context, channel string, t time.Time) (bool, error)
	ListWatermarks(ctx context.Context) (map[string]time.Time, error)
	DeleteWatermarks(ctx context.Context) (int64, error)
}

// Tracker records, per channel, the latest publish time already processed
type Tracker struct {
	store  Store
	logger *slog.Logger
}

// NewTracker creates a tracker over store
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// Get returns the channel watermark. ok is false on the channel's first run.
func (t *Tracker) Get(ctx context.Context, channel string) (time.Time, bool, error) {
	wm, ok, err := t.store.GetWatermark(ctx, channel)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get watermark for %s: %w", channel, err)
	}
	return wm, ok, nil
}

// Advance moves the channel watermark to ts, truncated to the millisecond
// precision the store keeps. Values not after the stored watermark are
// ignored and reported as false.
func (t *Tracker) Advance(ctx context.Context, channel string, ts time.Time) (bool, error) {
	if ts.IsZero() {
		return false, nil
	}
	ts = ts.Truncate(time.Millisecond)
	current, ok, err := t.Get(ctx, channel)
	if err != nil {
		return false, err
	}
	if ok && !ts.After(current) {
		t.logger.Debug("pollstate: ignoring non-advancing watermark",
			"channel", channel, "current", current, "candidate", ts)
		return false, nil
	}

	advanced, err := t.store.AdvanceWatermark(ctx, channel, ts)
	if err != nil {
		return false, fmt.Errorf("advance watermark for %s: %w", channel, err)
	}
	if advanced {
		t.logger.Info("pollstate: watermark advanced", "channel", channel, "watermark", ts)
	}
	return advanced, nil
}

// All returns every stored watermark keyed by channel
func (t *Tracker) All(ctx context.Context) (map[string]time.Time, error) {
	all, err := t.store.ListWatermarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	return all, nil
}

// Reset forgets every channel watermark so the next cycle starts fresh
func (t *Tracker) Reset(ctx context.Context) (int64, error) {
	n, err := t.store.DeleteWatermarks(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset watermarks: %w", err)
	}
	t.logger.Info("pollstate: watermarks reset", "removed", n)
	return n, nil
}
