// Package storage is the durable SQLite store behind the pipeline: accepted
// articles, the delivery log, the secondary keyword counter tier and the
// per-channel poll watermarks.
//
// The database is opened with production pragmas applied through the DSN so
// they survive connection recycling:
//
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//	foreign_keys = ON
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrConflict is returned when an insert collides with an existing identity
	ErrConflict = errors.New("storage: conflict")
	// ErrNotFound is returned by single-row lookups that match nothing
	ErrNotFound = errors.New("storage: not found")
)

const maxRetries = 3

type options struct {
	busyTimeout  int
	maxOpenConns int
	logger       *slog.Logger
	now          func() time.Time
}

// Option customises Open behaviour
type Option func(*options)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeout = ms } }

// WithMaxOpenConns bounds the connection pool. Default: 1 (single writer).
func WithMaxOpenConns(n int) Option { return func(o *options) { o.maxOpenConns = n } }

// WithLogger sets the logger used for schema and retry diagnostics.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock overrides time.Now, used by window arithmetic in tests.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Store wraps the SQLite database
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 10_000, maxOpenConns: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}

	if path == "" {
		return nil, fmt.Errorf("storage: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, o.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	o.logger.Debug("storage: database opened", "path", path)
	return &Store{db: db, logger: o.logger, now: o.now}, nil
}

func dsn(path string, busyTimeout int) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("storage: ping: %w", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("storage: health query: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// ResetAll clears every table in one transaction and returns the removed row counts per table
func (s *Store) ResetAll(ctx context.Context) (map[string]int64, error) {
	// Children before parents so the counts are not swallowed by cascades.
	tables := []string{"keyword_counter", "channel_watermark", "delivery_log", "news_article"}
	counts := make(map[string]int64, len(tables))

	err := s.runTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
			if err != nil {
				return fmt.Errorf("storage: clear %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			counts[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	for i := range maxRetries {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			return nil, err
		}
		s.logger.Debug("storage: database busy, retrying", "attempt", i+1)
		if err := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("storage: exec: max retries exceeded")
}

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	for i := range maxRetries {
		err := s.runTxOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			return err
		}
		if err := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("storage: tx: max retries exceeded")
}

func (s *Store) runTxOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
