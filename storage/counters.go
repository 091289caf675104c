package storage

import (
	"context"
	"fmt"
	"time"
)

// KeywordCounters is the durable keyword counter tier. A row's window is fixed
// at its created_at, like a Redis key whose TTL is armed on creation: once
// created_at falls outside the window the next increment restarts the row at 1,
// and Sweep removes it.
type KeywordCounters struct {
	store *Store
}

// KeywordCounters returns the counter tier backed by this store
func (s *Store) KeywordCounters() *KeywordCounters {
	return &KeywordCounters{store: s}
}

// Name identifies the tier in logs
func (k *KeywordCounters) Name() string { return "sqlite" }

// Increment records one occurrence of token and returns the number of
// in-window occurrences that preceded it.
func (k *KeywordCounters) Increment(ctx context.Context, token string, window time.Duration) (int64, error) {
	now := k.store.now()
	windowStart := toMillis(now.Add(-window))
	nowMs := toMillis(now)

	var count int64
	err := k.store.db.QueryRowContext(ctx, `
		INSERT INTO keyword_counter (keyword, count, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(keyword) DO UPDATE SET
			count = CASE WHEN keyword_counter.created_at >= ? THEN keyword_counter.count + 1 ELSE 1 END,
			created_at = CASE WHEN keyword_counter.created_at >= ? THEN keyword_counter.created_at ELSE excluded.created_at END,
			updated_at = excluded.updated_at
		RETURNING count`,
		token, nowMs, nowMs, windowStart, windowStart,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: increment keyword %q: %w", token, err)
	}
	return count - 1, nil
}

// Count returns the in-window count of token, 0 when absent or stale
func (k *KeywordCounters) Count(ctx context.Context, token string, window time.Duration) (int64, error) {
	var count int64
	err := k.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM keyword_counter
		WHERE keyword = ? AND created_at >= ?`,
		token, toMillis(k.store.now().Add(-window)),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count keyword %q: %w", token, err)
	}
	return count, nil
}

// Sweep deletes rows created before the window
func (k *KeywordCounters) Sweep(ctx context.Context, window time.Duration) (int64, error) {
	res, err := k.store.exec(ctx,
		`DELETE FROM keyword_counter WHERE created_at < ?`,
		toMillis(k.store.now().Add(-window)))
	if err != nil {
		return 0, fmt.Errorf("storage: sweep keywords: %w", err)
	}
	return res.RowsAffected()
}

// Reset deletes every keyword counter
func (k *KeywordCounters) Reset(ctx context.Context) (int64, error) {
	res, err := k.store.exec(ctx, `DELETE FROM keyword_counter`)
	if err != nil {
		return 0, fmt.Errorf("storage: reset keywords: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the tier is usable
func (k *KeywordCounters) Ping(ctx context.Context) error {
	return k.store.Ping(ctx)
}
