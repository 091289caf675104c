package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newsbot/rssfeeds"
	"newsbot/types"
)

const (
	DefaultAPIURL = "https://openapi.naver.com/v1/search/news.json"
	maxDisplay    = 100
	maxStart      = 1000
)

// Config holds the search API credentials
type Config struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client calls the Naver news search API
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type searchResponse struct {
	LastBuildDate string       `json:"lastBuildDate"`
	Total         int          `json:"total"`
	Start         int          `json:"start"`
	Display       int          `json:"display"`
	Items         []searchItem `json:"items"`
}

type searchItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// NewClient creates a search client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Search queries the news index. offset is zero-based; the API's 1-based
// start parameter and its paging limits are applied here.
func (c *Client) Search(ctx context.Context, query string, pageSize, offset int, sortOrder string) ([]types.Item, error) {
	if pageSize <= 0 || pageSize > maxDisplay {
		pageSize = maxDisplay
	}
	start := offset + 1
	if start < 1 {
		start = 1
	}
	if start > maxStart {
		return nil, fmt.Errorf("naver search offset %d exceeds the API limit", offset)
	}
	if sortOrder == "" {
		sortOrder = "date"
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("display", strconv.Itoa(pageSize))
	q.Set("start", strconv.Itoa(start))
	q.Set("sort", sortOrder)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.cfg.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.cfg.ClientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("naver search returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode naver response: %w", err)
	}

	fetchedAt := c.now()
	items := make([]types.Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, types.Item{
			Title:        rssfeeds.CleanText(it.Title),
			Link:         it.Link,
			OriginalLink: it.OriginalLink,
			Description:  rssfeeds.CleanText(it.Description),
			PublishedAt:  c.parsePubDate(it.PubDate, fetchedAt),
		})
	}
	c.logger.Debug("naver: search complete", "query", query, "items", len(items), "total", parsed.Total)
	return items, nil
}

// parsePubDate reads the RFC 1123 publish date, falling back to fetch time
func (c *Client) parsePubDate(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	c.logger.Debug("naver: unparseable pubDate, using fetch time", "pubDate", s)
	return fallback
}
