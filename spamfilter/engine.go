package spamfilter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultThreshold     = 3
	DefaultWindow        = 2 * time.Hour
	DefaultProbeInterval = 30 * time.Second
)

// Config holds the engine tuning knobs
type Config struct {
	// Threshold is the number of prior in-window keyword occurrences at
	// which a title becomes spam. Zero selects DefaultThreshold; a negative
	// value disables classification.
	Threshold int
	// Window is the sliding time window counters live in
	Window time.Duration
	// ProbeInterval spaces out health probes of an unavailable primary
	ProbeInterval time.Duration
	// Stopwords are excluded from tokenization in addition to DefaultStopwords
	Stopwords []string
	// DisableMirror stops primary increments from being copied to the secondary tier
	DisableMirror bool
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	return cfg
}

// Observation is the result of classifying one title. Tokens past Recorded
// have not been counted yet and are picked up by Engine.Record.
type Observation struct {
	Tokens   []string
	Recorded int
	Hits     int64
	Spam     bool
}

// Pending returns the tokens not yet counted
func (o *Observation) Pending() []string {
	if o == nil || o.Recorded >= len(o.Tokens) {
		return nil
	}
	return o.Tokens[o.Recorded:]
}

// Engine is the keyword frequency counter with primary/secondary failover
type Engine struct {
	primary   Tier
	secondary Tier
	cfg       Config
	stopwords map[string]struct{}
	logger    *slog.Logger
	now       func() time.Time

	// available is only mutated through CompareAndSwap
	available atomic.Bool
	lastProbe atomic.Int64
}

// NewEngine wires the two tiers. primary may be nil, in which case every
// increment goes to the secondary tier.
func NewEngine(primary, secondary Tier, cfg Config, logger *slog.Logger) (*Engine, error) {
	if secondary == nil {
		return nil, fmt.Errorf("secondary tier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = applyConfigDefaults(cfg)

	e := &Engine{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		stopwords: StopwordSet(DefaultStopwords, cfg.Stopwords),
		logger:    logger,
		now:       time.Now,
	}
	e.available.Store(primary != nil)
	return e, nil
}

// Available reports whether the primary tier is currently in use
func (e *Engine) Available() bool {
	return e.available.Load()
}

// Window returns the configured counter window
func (e *Engine) Window() time.Duration {
	return e.cfg.Window
}

// Stopwords returns the effective stopword set
func (e *Engine) Stopwords() map[string]struct{} {
	return e.stopwords
}

// Tokenize splits a title with the engine's stopwords
func (e *Engine) Tokenize(title string) []string {
	return Tokenize(title, e.stopwords)
}

// MarkUnavailable flags the primary tier as down, e.g. after a failed startup ping
func (e *Engine) MarkUnavailable(err error) {
	if e.primary == nil {
		return
	}
	if e.available.CompareAndSwap(true, false) {
		e.lastProbe.Store(e.now().UnixNano())
		e.logger.Warn("spamfilter: primary tier unavailable, failing over",
			"primary", e.primary.Name(), "secondary", e.secondary.Name(), "error", err)
	}
}

// ObserveAndCheck counts the title's keywords and reports whether it is spam.
// Counting stops at the first token that reaches the threshold.
func (e *Engine) ObserveAndCheck(ctx context.Context, title string) bool {
	return e.Classify(ctx, title).Spam
}

// Classify counts the title's keywords until the threshold is reached.
// It never fails: tier errors are absorbed by failover and logging.
func (e *Engine) Classify(ctx context.Context, title string) *Observation {
	obs := &Observation{Tokens: e.Tokenize(title)}
	if e.cfg.Threshold <= 0 {
		return obs
	}
	for i, token := range obs.Tokens {
		obs.Hits += e.increment(ctx, token)
		obs.Recorded = i + 1
		if obs.Hits >= int64(e.cfg.Threshold) {
			obs.Spam = true
			break
		}
	}
	return obs
}

// Record counts the tokens Classify left pending. A nil observation records
// every token of title.
func (e *Engine) Record(ctx context.Context, title string, obs *Observation) {
	if obs == nil {
		obs = &Observation{Tokens: e.Tokenize(title)}
	}
	for _, token := range obs.Pending() {
		e.increment(ctx, token)
	}
	obs.Recorded = len(obs.Tokens)
}

// increment returns the prior occurrence count of token, 0 when both tiers fail
func (e *Engine) increment(ctx context.Context, token string) int64 {
	if e.usePrimary(ctx) {
		prior, err := e.primary.Increment(ctx, token, e.cfg.Window)
		if err == nil {
			e.mirror(ctx, token)
			return prior
		}
		if ctx.Err() != nil {
			return 0
		}
		e.MarkUnavailable(err)
	}

	prior, err := e.secondary.Increment(ctx, token, e.cfg.Window)
	if err != nil {
		e.logger.Warn("spamfilter: both tiers failed, counting token as unseen",
			"token", token, "error", err)
		return 0
	}
	return prior
}

func (e *Engine) mirror(ctx context.Context, token string) {
	if e.cfg.DisableMirror {
		return
	}
	if _, err := e.secondary.Increment(ctx, token, e.cfg.Window); err != nil {
		e.logger.Debug("spamfilter: mirror to secondary failed", "token", token, "error", err)
	}
}

// usePrimary reports whether the primary should serve the next call, probing
// it at most once per probe interval while it is marked unavailable.
func (e *Engine) usePrimary(ctx context.Context) bool {
	if e.primary == nil {
		return false
	}
	if e.available.Load() {
		return true
	}

	now := e.now().UnixNano()
	last := e.lastProbe.Load()
	if now-last < int64(e.cfg.ProbeInterval) {
		return false
	}
	if !e.lastProbe.CompareAndSwap(last, now) {
		return false
	}
	if err := e.primary.Ping(ctx); err != nil {
		e.logger.Debug("spamfilter: primary probe failed", "primary", e.primary.Name(), "error", err)
		return false
	}
	if e.available.CompareAndSwap(false, true) {
		e.logger.Info("spamfilter: primary tier recovered", "primary", e.primary.Name())
	}
	return true
}

// Reset clears both tiers. A primary failure is logged and does not stop the
// secondary reset; the returned count is the sum over the tiers that succeeded.
func (e *Engine) Reset(ctx context.Context) (int64, error) {
	var total int64
	if e.primary != nil {
		n, err := e.primary.Reset(ctx)
		if err != nil {
			e.logger.Warn("spamfilter: primary reset failed", "primary", e.primary.Name(), "error", err)
		}
		total += n
	}

	n, err := e.secondary.Reset(ctx)
	if err != nil {
		return total, fmt.Errorf("reset %s counters: %w", e.secondary.Name(), err)
	}
	total += n
	e.logger.Info("spamfilter: counters reset", "removed", total)
	return total, nil
}

// Sweep removes stale counters from the secondary tier
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	sweeper, ok := e.secondary.(Sweeper)
	if !ok {
		return 0, errors.New("secondary tier does not support sweeping")
	}
	n, err := sweeper.Sweep(ctx, e.cfg.Window)
	if err != nil {
		return 0, fmt.Errorf("sweep %s counters: %w", e.secondary.Name(), err)
	}
	if n > 0 {
		e.logger.Info("spamfilter: swept stale counters", "removed", n, "window", e.cfg.Window)
	}
	return n, nil
}
