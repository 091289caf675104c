package rssfeeds

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"newsbot/types"

	"github.com/mmcdole/gofeed"
)

// SortByDate orders results newest first; any other sort keeps feed order
const SortByDate = "date"

// Source adapts an RSS/Atom feed to the feed source contract
type Source struct {
	feedURL   string
	parser    *gofeed.Parser
	extractor *Extractor
	logger    *slog.Logger
	now       func() time.Time
}

// NewSource creates a source for feedURL (a preset name or URL).
// extractor may be nil, in which case empty descriptions stay empty.
func NewSource(feedURL string, extractor *Extractor, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		feedURL:   ResolveFeedURL(feedURL),
		parser:    gofeed.NewParser(),
		extractor: extractor,
		logger:    logger,
		now:       time.Now,
	}
}

// Search fetches the feed and returns items whose title or description holds
// query (every item when query is empty), paged by offset and pageSize.
func (s *Source) Search(ctx context.Context, query string, pageSize, offset int, sortOrder string) ([]types.Item, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", s.feedURL, err)
	}

	fetchedAt := s.now()
	q := strings.ToLower(strings.TrimSpace(query))
	items := make([]types.Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		item := convertItem(fi, fetchedAt)
		if q != "" && !strings.Contains(strings.ToLower(item.Title+" "+item.Description), q) {
			continue
		}
		items = append(items, item)
	}

	if sortOrder == SortByDate {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		})
	}

	items = page(items, pageSize, offset)
	if s.extractor != nil {
		s.extractor.FillDescriptions(ctx, items)
	}
	s.logger.Debug("rssfeeds: fetched feed", "feed", s.feedURL, "items", len(items))
	return items, nil
}

func convertItem(fi *gofeed.Item, fetchedAt time.Time) types.Item {
	// Parse published date; unparseable dates fall back to fetch time
	publishedAt := fetchedAt
	if fi.PublishedParsed != nil {
		publishedAt = *fi.PublishedParsed
	} else if fi.UpdatedParsed != nil {
		publishedAt = *fi.UpdatedParsed
	}

	description := fi.Description
	if description == "" {
		description = fi.Content
	}

	return types.Item{
		Title:       CleanText(fi.Title),
		Link:        fi.Link,
		Description: CleanText(description),
		PublishedAt: publishedAt,
	}
}

func page(items []types.Item, pageSize, offset int) []types.Item {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if pageSize > 0 && len(items) > pageSize {
		items = items[:pageSize]
	}
	return items
}
