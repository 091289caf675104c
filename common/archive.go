package common

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"newsbot/types"
)

// ObjectPutter is the subset of S3 the archiver needs
type ObjectPutter interface {
	Put(ctx context.Context, obj Object) error
}

// Archiver writes a JSON record of every accepted article to a bucket
type Archiver struct {
	store  ObjectPutter
	bucket string
	prefix string
	loc    *time.Location
}

// archiveRecord is the stored document
type archiveRecord struct {
	Hash        string    `json:"hash"`
	Channel     string    `json:"channel"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// NewArchiver creates an archiver. prefix may be empty; loc decides the date
// folder and defaults to UTC.
func NewArchiver(store ObjectPutter, bucket, prefix string, loc *time.Location) *Archiver {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if loc == nil {
		loc = time.UTC
	}
	return &Archiver{store: store, bucket: bucket, prefix: prefix, loc: loc}
}

// Key returns the object key for an article:
// <prefix>/articles/<channel>/<YYYY-MM-DD>/<hash>.json
func (a *Archiver) Key(channel string, article *types.Article) string {
	day := article.FetchedAt
	if day.IsZero() {
		day = article.PublishedAt
	}
	return path.Join(a.prefix, "articles", channel, day.In(a.loc).Format(time.DateOnly), article.Hash+".json")
}

// Archive uploads the article record
func (a *Archiver) Archive(ctx context.Context, ch types.Channel, article *types.Article) error {
	rec := archiveRecord{
		Hash:        article.Hash,
		Channel:     ch.Name,
		Title:       article.Title,
		Link:        article.Link,
		Summary:     article.Summary,
		Publisher:   article.Publisher,
		PublishedAt: article.PublishedAt,
		FetchedAt:   article.FetchedAt,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}
	return a.store.Put(ctx, Object{
		Bucket:      a.bucket,
		Key:         a.Key(ch.Name, article),
		Body:        data,
		ContentType: "application/json",
	})
}
