package deduplication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsbot/storage"
	"newsbot/types"
)

// ArticleStore describes the durable store functionality required by the deduplicator.
// Insert must return storage.ErrConflict when the hash is already taken.
type ArticleStore interface {
	ArticleExists(ctx context.Context, hash string) (bool, error)
	InsertArticle(ctx context.Context, article *types.Article) (int64, error)
}

// DeduplicationResult contains the result of a deduplication check
type DeduplicationResult struct {
	IsDuplicate bool      `json:"is_duplicate"`
	ArticleID   int64     `json:"article_id,omitempty"`
	Hash        string    `json:"hash"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Deduplicator guards article identity against the durable store
type Deduplicator struct {
	store  ArticleStore
	logger *slog.Logger
	now    func() time.Time
}

// NewDeduplicator constructs a deduplicator over a preconfigured store
func NewDeduplicator(store ArticleStore, logger *slog.Logger) (*Deduplicator, error) {
	if store == nil {
		return nil, fmt.Errorf("article store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{store: store, logger: logger, now: time.Now}, nil
}

// CheckForDuplicates is the advisory lookup. A false result does not reserve the hash.
func (d *Deduplicator) CheckForDuplicates(ctx context.Context, hash string) (*DeduplicationResult, error) {
	exists, err := d.store.ArticleExists(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up article %s: %w", shortHash(hash), err)
	}
	return &DeduplicationResult{
		IsDuplicate: exists,
		Hash:        hash,
		CheckedAt:   d.now(),
	}, nil
}

// AddArticle inserts the article. A uniqueness conflict is reported as a duplicate, not an error.
func (d *Deduplicator) AddArticle(ctx context.Context, article *types.Article) (*DeduplicationResult, error) {
	if article == nil {
		return nil, fmt.Errorf("nil article")
	}
	if article.Hash == "" {
		_, article.Hash = Identity(article.Link)
	}

	result := &DeduplicationResult{Hash: article.Hash, CheckedAt: d.now()}

	id, err := d.store.InsertArticle(ctx, article)
	if errors.Is(err, storage.ErrConflict) {
		d.logger.Debug("deduplication: lost insert race", "hash", shortHash(article.Hash))
		result.IsDuplicate = true
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add article %s: %w", shortHash(article.Hash), err)
	}

	article.ID = id
	result.ArticleID = id
	return result, nil
}

// ProcessArticle performs the advisory check followed by the authoritative insert
func (d *Deduplicator) ProcessArticle(ctx context.Context, article *types.Article) (*DeduplicationResult, error) {
	if article == nil {
		return nil, fmt.Errorf("nil article")
	}

	check, err := d.CheckForDuplicates(ctx, article.Hash)
	if err != nil {
		// Insert is authoritative; a failed lookup is not fatal.
		d.logger.Warn("deduplication: exists check failed", "hash", shortHash(article.Hash), "error", err)
	} else if check.IsDuplicate {
		return check, nil
	}

	return d.AddArticle(ctx, article)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
