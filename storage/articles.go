package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"newsbot/types"
)

// ArticleExists reports whether an article with the identity hash is stored.
// The answer is advisory: a concurrent InsertArticle may land right after.
func (s *Store) ArticleExists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM news_article WHERE link_hash = ? LIMIT 1`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: article exists: %w", err)
	}
	return true, nil
}

// InsertArticle stores a new article and returns its id.
// It returns ErrConflict when the identity hash is already present.
func (s *Store) InsertArticle(ctx context.Context, a *types.Article) (int64, error) {
	if a == nil || a.Hash == "" {
		return 0, fmt.Errorf("storage: insert article: missing hash")
	}
	fetched := a.FetchedAt
	if fetched.IsZero() {
		fetched = s.now()
	}

	res, err := s.exec(ctx, `
		INSERT INTO news_article (link_hash, link, title, summary, publisher, channel, published_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(link_hash) DO NOTHING`,
		a.Hash, a.Link, a.Title, a.Summary, a.Publisher, a.Channel,
		toMillis(a.PublishedAt), toMillis(fetched),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: insert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: insert article: %w", err)
	}
	if n == 0 {
		return 0, ErrConflict
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: insert article id: %w", err)
	}
	return id, nil
}

// GetArticleByHash loads a single article by identity hash
func (s *Store) GetArticleByHash(ctx context.Context, hash string) (*types.Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, link_hash, link, title, summary, publisher, channel, published_at, fetched_at
		FROM news_article WHERE link_hash = ?`, hash)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get article: %w", err)
	}
	return a, nil
}

// CountArticles returns the number of stored articles
func (s *Store) CountArticles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_article`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count articles: %w", err)
	}
	return n, nil
}

// DeliveredArticles returns the articles successfully delivered in [from, to), oldest first
func (s *Store) DeliveredArticles(ctx context.Context, from, to time.Time) ([]types.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.link_hash, a.link, a.title, a.summary, a.publisher, a.channel, a.published_at, a.fetched_at
		FROM news_article a
		WHERE EXISTS (
			SELECT 1 FROM delivery_log d
			WHERE d.article_id = a.id AND d.success = 1 AND d.sent_at >= ? AND d.sent_at < ?
		)
		ORDER BY a.published_at ASC, a.id ASC`,
		toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("storage: delivered articles: %w", err)
	}
	defer rows.Close()

	var out []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan article: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteArticles removes every stored article (and, by cascade, their delivery records)
func (s *Store) DeleteArticles(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM news_article`)
	if err != nil {
		return 0, fmt.Errorf("storage: delete articles: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(r rowScanner) (*types.Article, error) {
	var (
		a                  types.Article
		published, fetched int64
	)
	if err := r.Scan(&a.ID, &a.Hash, &a.Link, &a.Title, &a.Summary, &a.Publisher, &a.Channel, &published, &fetched); err != nil {
		return nil, err
	}
	a.PublishedAt = fromMillis(published)
	a.FetchedAt = fromMillis(fetched)
	return &a, nil
}
