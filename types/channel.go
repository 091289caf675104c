package types

import "time"

// Feed source identifiers used in channel configuration
const (
	SourceNaver = "naver"
	SourceRSS   = "rss"
)

// Channel is a named delivery stream with its own query, sink and watermark
type Channel struct {
	Name       string `yaml:"name" json:"name"`
	Query      string `yaml:"query" json:"query"`
	Source     string `yaml:"source" json:"source"`
	FeedURL    string `yaml:"feed_url" json:"feed_url,omitempty"`
	WebhookURL string `yaml:"webhook_url" json:"-"`
	// Prefix is prepended to the title of every delivered message (e.g. "[속보]")
	Prefix              string `yaml:"prefix" json:"prefix,omitempty"`
	RequireQueryInTitle bool   `yaml:"require_query_in_title" json:"require_query_in_title"`
}

// Outcome is the terminal classification of one item in a cycle
type Outcome string

const (
	OutcomeStale          Outcome = "stale"
	OutcomeRuleExcluded   Outcome = "rule_excluded"
	OutcomeSpam           Outcome = "spam"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomeFailed         Outcome = "failed"
)

// Outcomes lists every outcome in reporting order
var Outcomes = []Outcome{
	OutcomeStale,
	OutcomeRuleExcluded,
	OutcomeSpam,
	OutcomeDuplicate,
	OutcomeDelivered,
	OutcomeDeliveryFailed,
	OutcomeFailed,
}

// CycleReport summarizes one poll cycle of a channel
type CycleReport struct {
	Channel    string          `json:"channel"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Fetched    int             `json:"fetched"`
	Eligible   int             `json:"eligible"`
	Counts     map[Outcome]int `json:"counts"`
	// Watermark is the max publish time among eligible items; zero when none were eligible
	Watermark time.Time `json:"watermark"`
	Advanced  bool      `json:"advanced"`
}

// Count returns the tally for an outcome
func (r *CycleReport) Count(o Outcome) int {
	if r == nil || r.Counts == nil {
		return 0
	}
	return r.Counts[o]
}
