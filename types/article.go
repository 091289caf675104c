package types

import (
	"time"
)

// Item is a single entry returned by a feed source. It is never persisted.
type Item struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	OriginalLink string    `json:"original_link,omitempty"`
	Description  string    `json:"description,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
}

// CanonicalSource returns the link used for identity and publisher lookup.
// The publisher's own URL wins over an aggregator link when both are present.
func (i Item) CanonicalSource() string {
	if i.OriginalLink != "" {
		return i.OriginalLink
	}
	return i.Link
}

// Article represents an accepted item stored in the durable store
type Article struct {
	ID          int64     `json:"id"`
	Hash        string    `json:"hash"`
	Link        string    `json:"link"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Publisher   string    `json:"publisher"`
	Channel     string    `json:"channel"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DeliveryRecord is the outcome of a single delivery attempt for an article
type DeliveryRecord struct {
	ID           int64     `json:"id"`
	ArticleID    int64     `json:"article_id"`
	Channel      string    `json:"channel"`
	Success      bool      `json:"success"`
	HTTPStatus   int       `json:"http_status"`
	ResponseBody string    `json:"response_body,omitempty"`
	Attempts     int       `json:"attempts"`
	SentAt       time.Time `json:"sent_at"`
}

// DeliveryEvent is published to the event stream after a delivery attempt
type DeliveryEvent struct {
	ID          string    `json:"id"`
	Channel     string    `json:"channel"`
	Hash        string    `json:"hash"`
	ArticleID   int64     `json:"article_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"published_at"`
	Success     bool      `json:"success"`
	HTTPStatus  int       `json:"http_status"`
	SentAt      time.Time `json:"sent_at"`
}
