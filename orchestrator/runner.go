package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"newsbot/types"
)

var (
	// ErrUnknownChannel is returned for a channel name that is not configured
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrCycleInProgress is returned when the channel is already being polled
	ErrCycleInProgress = errors.New("cycle already in progress")
)

// FeedSource fetches candidate items for a query
type FeedSource interface {
	Search(ctx context.Context, query string, pageSize, offset int, sortOrder string) ([]types.Item, error)
}

// Processor evaluates and delivers one batch
type Processor interface {
	Process(ctx context.Context, ch types.Channel, items []types.Item, watermark time.Time) *types.CycleReport
}

// Watermarks is the per-channel poll state
type Watermarks interface {
	Get(ctx context.Context, channel string) (time.Time, bool, error)
	Advance(ctx context.Context, channel string, t time.Time) (bool, error)
}

// RunnerConfig controls how feeds are queried
type RunnerConfig struct {
	PageSize int
	Sort     string
}

// Runner executes poll cycles: fetch, process, advance the watermark
type Runner struct {
	channels  map[string]types.Channel
	order     []string
	sources   map[string]FeedSource
	processor Processor
	tracker   Watermarks
	board     *StatusBoard
	cfg       RunnerConfig
	logger    *slog.Logger

	locks map[string]*sync.Mutex
}

// NewRunner creates a runner. sources is keyed by channel name and must
// cover every channel.
func NewRunner(channels []types.Channel, sources map[string]FeedSource, processor Processor, tracker Watermarks, board *StatusBoard, cfg RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if processor == nil || tracker == nil {
		return nil, fmt.Errorf("processor and tracker are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if board == nil {
		names := make([]string, 0, len(channels))
		for _, ch := range channels {
			names = append(names, ch.Name)
		}
		board = NewStatusBoard(names, nil)
	}
	r := &Runner{
		channels:  make(map[string]types.Channel, len(channels)),
		sources:   sources,
		processor: processor,
		tracker:   tracker,
		board:     board,
		cfg:       cfg,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex, len(channels)),
	}
	for _, ch := range channels {
		if _, ok := sources[ch.Name]; !ok {
			return nil, fmt.Errorf("no feed source for channel %q", ch.Name)
		}
		r.channels[ch.Name] = ch
		r.order = append(r.order, ch.Name)
		r.locks[ch.Name] = &sync.Mutex{}
	}
	return r, nil
}

// Channels returns the configured channels in configuration order
func (r *Runner) Channels() []types.Channel {
	out := make([]types.Channel, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.channels[name])
	}
	return out
}

// Board returns the status board the runner reports to
func (r *Runner) Board() *StatusBoard {
	return r.board
}

// RunOnce executes a single cycle for the named channel. It refuses to run
// concurrently with another cycle of the same channel.
func (r *Runner) RunOnce(ctx context.Context, name string) (*types.CycleReport, error) {
	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	lock := r.locks[name]
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrCycleInProgress, name)
	}
	defer lock.Unlock()

	log := r.logger.With("channel", name)
	r.board.Start(name)

	report, err := r.runCycle(ctx, ch, log)
	if err != nil {
		log.Error("orchestrator: cycle failed", "error", err)
		r.board.Fail(name, err)
		return nil, err
	}
	r.board.Finish(name, report, report.Watermark)
	return report, nil
}

func (r *Runner) runCycle(ctx context.Context, ch types.Channel, log *slog.Logger) (*types.CycleReport, error) {
	// Step 1: Load the watermark; absent means first run
	watermark, found, err := r.tracker.Get(ctx, ch.Name)
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}
	if !found {
		log.Info("orchestrator: no watermark, treating as first run")
	}

	// Step 2: Fetch
	items, err := r.sources[ch.Name].Search(ctx, ch.Query, r.cfg.PageSize, 0, r.cfg.Sort)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	fetched := len(items)
	if ch.RequireQueryInTitle {
		items = filterByTitle(items, ch.Query)
	}
	log.Debug("orchestrator: fetched items", "fetched", fetched, "kept", len(items))

	// Step 3: Process the whole batch
	report := r.processor.Process(ctx, ch, items, watermark)
	report.Fetched = fetched

	// Step 4: Advance only when the batch ran to completion
	if report.Watermark.IsZero() {
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cycle interrupted, watermark kept: %w", err)
	}
	advanced, err := r.tracker.Advance(ctx, ch.Name, report.Watermark)
	if err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}
	report.Advanced = advanced
	return report, nil
}

// RunAll runs one cycle per channel sequentially, skipping channels that are busy
func (r *Runner) RunAll(ctx context.Context) map[string]error {
	errs := make(map[string]error)
	for _, name := range r.order {
		if ctx.Err() != nil {
			errs[name] = ctx.Err()
			continue
		}
		if _, err := r.RunOnce(ctx, name); err != nil {
			errs[name] = err
		}
	}
	return errs
}

func filterByTitle(items []types.Item, query string) []types.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	kept := items[:0:0]
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) {
			kept = append(kept, it)
		}
	}
	return kept
}
