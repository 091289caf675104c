package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"newsbot/deduplication"
	"newsbot/filter"
	"newsbot/slack"
	"newsbot/spamfilter"
	"newsbot/types"

	"golang.org/x/sync/errgroup"
)

const (
	maxResponseBody   = 2048
	sideEffectTimeout = 30 * time.Second
)

// RuleFilter rejects items by configured keyword and publisher lists
type RuleFilter interface {
	IsExcluded(title, publisher, channel string) bool
}

// SpamFilter is the keyword frequency check
type SpamFilter interface {
	Classify(ctx context.Context, title string) *spamfilter.Observation
	Record(ctx context.Context, title string, obs *spamfilter.Observation)
}

// Deduplicator runs the advisory lookup and the authoritative insert
type Deduplicator interface {
	ProcessArticle(ctx context.Context, article *types.Article) (*deduplication.DeduplicationResult, error)
}

// PublisherResolver maps an item to its publisher name
type PublisherResolver interface {
	Resolve(item types.Item) string
}

// Sink delivers a message to a channel and never fails outright
type Sink interface {
	Send(ctx context.Context, ch types.Channel, msg *slack.Message) slack.Result
}

// DeliveryLog persists delivery attempts
type DeliveryLog interface {
	InsertDelivery(ctx context.Context, rec *types.DeliveryRecord) (int64, error)
}

// Archiver stores accepted articles outside the database
type Archiver interface {
	Archive(ctx context.Context, ch types.Channel, article *types.Article) error
}

// EventPublisher announces delivery attempts to other services
type EventPublisher interface {
	PublishDelivery(ctx context.Context, ev types.DeliveryEvent) error
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithMaxConcurrency caps the number of items processed at once (0 = one goroutine per item)
func WithMaxConcurrency(n int) Option { return func(c *Coordinator) { c.maxConcurrency = n } }

// WithPublishers sets the publisher directory
func WithPublishers(p PublisherResolver) Option { return func(c *Coordinator) { c.publishers = p } }

// WithFormatter sets the message formatter
func WithFormatter(f *slack.Formatter) Option { return func(c *Coordinator) { c.formatter = f } }

// WithArchiver enables archiving of accepted articles
func WithArchiver(a Archiver) Option { return func(c *Coordinator) { c.archiver = a } }

// WithEventPublisher enables delivery events
func WithEventPublisher(p EventPublisher) Option { return func(c *Coordinator) { c.events = p } }

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// WithClock overrides the time source
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// Coordinator runs a channel's fetched batch through the filters and delivers what survives
type Coordinator struct {
	rules      RuleFilter
	spam       SpamFilter
	dedup      Deduplicator
	sink       Sink
	deliveries DeliveryLog

	publishers     PublisherResolver
	formatter      *slack.Formatter
	archiver       Archiver
	events         EventPublisher
	maxConcurrency int
	logger         *slog.Logger
	now            func() time.Time
}

// New creates a coordinator. rules may be nil, in which case nothing is rule-excluded.
func New(rules RuleFilter, spam SpamFilter, dedup Deduplicator, sink Sink, deliveries DeliveryLog, opts ...Option) (*Coordinator, error) {
	if spam == nil || dedup == nil || sink == nil || deliveries == nil {
		return nil, fmt.Errorf("dispatch: spam filter, deduplicator, sink and delivery log are required")
	}
	c := &Coordinator{
		rules:      rules,
		spam:       spam,
		dedup:      dedup,
		sink:       sink,
		deliveries: deliveries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rules == nil {
		c.rules = (*filter.Filter)(nil)
	}
	if c.publishers == nil {
		c.publishers = filter.NewDirectory(nil)
	}
	if c.formatter == nil {
		c.formatter = slack.NewFormatter(nil)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Process evaluates items against the channel's watermark and returns the
// cycle report. Report.Watermark is the max publish time among items newer
// than watermark; the caller advances the tracker with it.
func (c *Coordinator) Process(ctx context.Context, ch types.Channel, items []types.Item, watermark time.Time) *types.CycleReport {
	report := &types.CycleReport{
		Channel:   ch.Name,
		StartedAt: c.now(),
		Fetched:   len(items),
		Counts:    make(map[types.Outcome]int, len(types.Outcomes)),
	}

	// Each goroutine owns its slot; siblings never cancel each other.
	outcomes := make([]types.Outcome, len(items))
	var g errgroup.Group
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}

	for i, item := range items {
		// watermarks are persisted at millisecond precision
		published := item.PublishedAt.Truncate(time.Millisecond)
		if !watermark.IsZero() && !published.After(watermark) {
			outcomes[i] = types.OutcomeStale
			continue
		}
		report.Eligible++
		if published.After(report.Watermark) {
			report.Watermark = published
		}
		g.Go(func() error {
			outcomes[i] = c.processItem(ctx, ch, item)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		report.Counts[o]++
	}
	report.FinishedAt = c.now()

	c.logger.Info("dispatch: batch processed",
		"channel", ch.Name,
		"fetched", report.Fetched,
		"eligible", report.Eligible,
		"delivered", report.Count(types.OutcomeDelivered),
		"duplicate", report.Count(types.OutcomeDuplicate),
		"spam", report.Count(types.OutcomeSpam),
		"rule_excluded", report.Count(types.OutcomeRuleExcluded),
		"delivery_failed", report.Count(types.OutcomeDeliveryFailed),
		"failed", report.Count(types.OutcomeFailed),
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report
}

func (c *Coordinator) processItem(ctx context.Context, ch types.Channel, item types.Item) (outcome types.Outcome) {
	_, hash := deduplication.Identity(item.CanonicalSource())
	log := c.logger.With("channel", ch.Name, "hash", shortHash(hash))

	var obs *spamfilter.Observation
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch: item panicked", "panic", r, "stack", string(debug.Stack()))
			outcome = types.OutcomeFailed
		}
		c.recordTokens(ctx, log, item.Title, obs)
	}()

	publisher := c.publishers.Resolve(item)

	if c.rules.IsExcluded(item.Title, publisher, ch.Name) {
		log.Debug("dispatch: rule excluded", "title", item.Title, "publisher", publisher)
		return types.OutcomeRuleExcluded
	}

	obs = c.spam.Classify(ctx, item.Title)
	if obs.Spam {
		log.Info("dispatch: spam suppressed", "title", item.Title, "hits", obs.Hits)
		return types.OutcomeSpam
	}

	article := &types.Article{
		Hash:        hash,
		Link:        item.CanonicalSource(),
		Title:       item.Title,
		Summary:     item.Description,
		Publisher:   publisher,
		Channel:     ch.Name,
		PublishedAt: item.PublishedAt,
		FetchedAt:   c.now(),
	}

	res, err := c.dedup.ProcessArticle(ctx, article)
	if err != nil {
		log.Error("dispatch: failed to store article", "error", err)
		return types.OutcomeFailed
	}
	if res.IsDuplicate {
		log.Debug("dispatch: duplicate", "title", item.Title)
		return types.OutcomeDuplicate
	}

	if c.archiver != nil {
		c.archive(ctx, log, ch, article)
	}
	return c.deliver(ctx, log, ch, article)
}

// deliver sends the article and always writes the attempt to the delivery log
func (c *Coordinator) deliver(ctx context.Context, log *slog.Logger, ch types.Channel, article *types.Article) types.Outcome {
	result := c.sink.Send(ctx, ch, c.formatter.Article(ch, article))

	rec := &types.DeliveryRecord{
		ArticleID:    article.ID,
		Channel:      ch.Name,
		Success:      result.Success,
		HTTPStatus:   result.HTTPStatus,
		ResponseBody: truncate(result.Body, maxResponseBody),
		Attempts:     result.Attempts,
		SentAt:       c.now(),
	}
	// The attempt already happened; log it even if the cycle is being cancelled.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if _, err := c.deliveries.InsertDelivery(logCtx, rec); err != nil {
		log.Error("dispatch: failed to write delivery record", "error", err, "success", result.Success)
	}

	if c.events != nil {
		ev := types.DeliveryEvent{
			Channel:     ch.Name,
			Hash:        article.Hash,
			ArticleID:   article.ID,
			Title:       article.Title,
			Link:        article.Link,
			Publisher:   article.Publisher,
			PublishedAt: article.PublishedAt,
			Success:     result.Success,
			HTTPStatus:  result.HTTPStatus,
			SentAt:      rec.SentAt,
		}
		if err := c.events.PublishDelivery(logCtx, ev); err != nil {
			log.Warn("dispatch: failed to publish delivery event", "error", err)
		}
	}

	if !result.Success {
		log.Warn("dispatch: delivery failed", "status", result.HTTPStatus, "attempts", result.Attempts)
		return types.OutcomeDeliveryFailed
	}
	log.Info("dispatch: delivered", "title", article.Title, "publisher", article.Publisher)
	return types.OutcomeDelivered
}

func (c *Coordinator) archive(ctx context.Context, log *slog.Logger, ch types.Channel, article *types.Article) {
	actx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := c.archiver.Archive(actx, ch, article); err != nil {
		log.Warn("dispatch: archive upload failed", "error", err)
	}
}

// recordTokens counts whatever Classify left pending. It runs for every
// eligible item so later items in this and future batches see the title.
func (c *Coordinator) recordTokens(ctx context.Context, log *slog.Logger, title string, obs *spamfilter.Observation) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch: token recording panicked", "panic", r)
		}
	}()
	c.spam.Record(ctx, title, obs)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
