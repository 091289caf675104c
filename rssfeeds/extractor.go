package rssfeeds

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsbot/types"

	readability "github.com/go-shiori/go-readability"
)

const (
	WorkerCount      = 5
	extractorTimeout = 30 * time.Second
	maxExcerptRunes  = 300
)

// Extractor fills missing item descriptions from the article page
type Extractor struct {
	workers int
	timeout time.Duration
	logger  *slog.Logger
	fetch   func(url string, timeout time.Duration) (string, error)
}

// NewExtractor creates an extractor with a worker pool of the given size
func NewExtractor(workers int, timeout time.Duration, logger *slog.Logger) *Extractor {
	if workers <= 0 {
		workers = WorkerCount
	}
	if timeout <= 0 {
		timeout = extractorTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{workers: workers, timeout: timeout, logger: logger, fetch: readabilityExcerpt}
}

// FillDescriptions extracts an excerpt for every item without a description
// using a worker pool. Items are updated in place; failures leave them as is.
func (e *Extractor) FillDescriptions(ctx context.Context, items []types.Item) {
	var wg sync.WaitGroup
	indexes := make(chan int, len(items))

	// Start worker pool
	for w := 0; w < e.workers; w++ {
		go func(workerID int) {
			for i := range indexes {
				if ctx.Err() == nil {
					if excerpt, err := e.fetch(items[i].Link, e.timeout); err != nil {
						e.logger.Debug("rssfeeds: extraction failed", "worker", workerID, "url", items[i].Link, "error", err)
					} else {
						items[i].Description = excerpt
					}
				}
				wg.Done()
			}
		}(w)
	}

	// Queue items for extraction
	for i := range items {
		if items[i].Description != "" || items[i].Link == "" {
			continue
		}
		wg.Add(1)
		indexes <- i
	}

	wg.Wait()
	close(indexes)
}

// readabilityExcerpt fetches the page and returns its excerpt or leading text
func readabilityExcerpt(url string, timeout time.Duration) (string, error) {
	article, err := readability.FromURL(url, timeout)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}
	text := article.Excerpt
	if text == "" {
		text = article.TextContent
	}
	text = CleanText(text)
	if text == "" {
		return "", fmt.Errorf("no text extracted")
	}
	if r := []rune(text); len(r) > maxExcerptRunes {
		text = string(r[:maxExcerptRunes]) + "…"
	}
	return text, nil
}
