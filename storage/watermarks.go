package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetWatermark returns the channel's last-seen publish time.
// ok is false when the channel has never completed a cycle.
func (s *Store) GetWatermark(ctx context.Context, channel string) (t time.Time, ok bool, err error) {
	var ms int64
	err = s.db.QueryRowContext(ctx,
		`SELECT last_seen FROM channel_watermark WHERE channel = ?`, channel).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("storage: get watermark %s: %w", channel, err)
	}
	return fromMillis(ms), true, nil
}

// AdvanceWatermark stores t for the channel unless the stored value is already
// at or after t. It reports whether the row changed.
func (s *Store) AdvanceWatermark(ctx context.Context, channel string, t time.Time) (bool, error) {
	res, err := s.exec(ctx, `
		INSERT INTO channel_watermark (channel, last_seen, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel) DO UPDATE SET
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
		WHERE excluded.last_seen > channel_watermark.last_seen`,
		channel, toMillis(t), toMillis(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("storage: advance watermark %s: %w", channel, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: advance watermark %s: %w", channel, err)
	}
	return n > 0, nil
}

// ListWatermarks returns every stored watermark keyed by channel
func (s *Store) ListWatermarks(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel, last_seen FROM channel_watermark`)
	if err != nil {
		return nil, fmt.Errorf("storage: list watermarks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			channel string
			ms      int64
		)
		if err := rows.Scan(&channel, &ms); err != nil {
			return nil, fmt.Errorf("storage: scan watermark: %w", err)
		}
		out[channel] = fromMillis(ms)
	}
	return out, rows.Err()
}

// DeleteWatermarks forgets every channel's progress
func (s *Store) DeleteWatermarks(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM channel_watermark`)
	if err != nil {
		return 0, fmt.Errorf("storage: delete watermarks: %w", err)
	}
	return res.RowsAffected()
}
