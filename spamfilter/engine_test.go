package spamfilter

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memoryTier counts like a Redis key with a TTL armed on creation
type memoryTier struct {
	name  string
	now   func() time.Time
	fail  atomic.Bool
	calls atomic.Int64

	mu       sync.Mutex
	counters map[string]*memoryCounter
}

type memoryCounter struct {
	created time.Time
	n       int64
}

func newMemoryTier(name string, now func() time.Time) *memoryTier {
	return &memoryTier{name: name, now: now, counters: make(map[string]*memoryCounter)}
}

var errTierDown = errors.New("tier down")

func (m *memoryTier) Name() string { return m.name }

func (m *memoryTier) Increment(ctx context.Context, token string, window time.Duration) (int64, error) {
	m.calls.Add(1)
	if m.fail.Load() {
		return 0, errTierDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	c, ok := m.counters[token]
	if !ok || c.created.Before(now.Add(-window)) {
		c = &memoryCounter{created: now}
		m.counters[token] = c
	}
	prior := c.n
	c.n++
	return prior, nil
}

func (m *memoryTier) Reset(ctx context.Context) (int64, error) {
	if m.fail.Load() {
		return 0, errTierDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.counters))
	m.counters = make(map[string]*memoryCounter)
	return n, nil
}

func (m *memoryTier) Ping(ctx context.Context) error {
	if m.fail.Load() {
		return errTierDown
	}
	return nil
}

func (m *memoryTier) count(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[token]; ok {
		return int(c.n)
	}
	return 0
}

// recordingHandler captures log records so tests can count messages
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Message == msg {
			n++
		}
	}
	return n
}

const (
	msgUnavailable = "spamfilter: primary tier unavailable, failing over"
	msgRecovered   = "spamfilter: primary tier recovered"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *memoryTier, *memoryTier, *testClock, *recordingHandler) {
	t.Helper()
	clock := newTestClock()
	primary := newMemoryTier("primary", clock.Now)
	secondary := newMemoryTier("secondary", clock.Now)
	handler := &recordingHandler{}
	e, err := NewEngine(primary, secondary, cfg, slog.New(handler))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.now = clock.Now
	return e, primary, secondary, clock, handler
}

func TestTokenize(t *testing.T) {
	stop := StopwordSet(DefaultStopwords)
	cases := []struct {
		name  string
		title string
		want  []string
	}{
		{"markers and punctuation", "[속보] Samsung, Apple 합병 발표... Samsung", []string{"samsung", "apple", "합병", "발표"}},
		{"short tokens dropped", "a b cd 1 22", []string{"cd", "22"}},
		{"case folded", "BREAKING News news", []string{"news"}},
		{"empty", "  ", []string{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Tokenize(c.title, stop)
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("Tokenize(%q) = %q; want %q", c.title, got, c.want)
			}
		})
	}
}

func TestThresholdShortCircuits(t *testing.T) {
	e, primary, secondary, _, _ := newTestEngine(t, Config{Threshold: 3, Window: time.Hour})
	ctx := context.Background()

	titles := []string{"alpha beta", "alpha gamma", "alpha delta", "alpha epsilon"}
	want := []bool{false, false, false, true}
	var last *Observation
	for i, title := range titles {
		last = e.Classify(ctx, title)
		if last.Spam != want[i] {
			t.Fatalf("title %d (%q): spam = %v; want %v", i+1, title, last.Spam, want[i])
		}
	}

	if got := last.Pending(); !reflect.DeepEqual(got, []string{"epsilon"}) {
		t.Fatalf("pending = %q; want [epsilon]", got)
	}
	if primary.count("epsilon") != 0 {
		t.Fatalf("short-circuited token should not be counted yet")
	}

	e.Record(ctx, "alpha epsilon", last)
	if primary.count("epsilon") != 1 || secondary.count("epsilon") != 1 {
		t.Fatalf("Record should count pending tokens in both tiers")
	}
	if len(last.Pending()) != 0 {
		t.Fatalf("observation should have nothing pending after Record")
	}
}

func TestRecordWithoutObservationCountsEveryToken(t *testing.T) {
	e, primary, _, _, _ := newTestEngine(t, Config{Threshold: 3, Window: time.Hour})
	e.Record(context.Background(), "alpha beta gamma", nil)
	for _, tok := range []string{"alpha", "beta", "gamma"} {
		if primary.count(tok) != 1 {
			t.Fatalf("token %q counted %d times; want 1", tok, primary.count(tok))
		}
	}
}

func TestThresholdDefaults(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, Config{})
	if e.cfg.Threshold != DefaultThreshold {
		t.Fatalf("zero threshold = %d; want %d", e.cfg.Threshold, DefaultThreshold)
	}

	disabled, primary, _, _, _ := newTestEngine(t, Config{Threshold: -1})
	for i := 0; i < 5; i++ {
		if disabled.ObserveAndCheck(context.Background(), "alpha beta") {
			t.Fatalf("negative threshold must disable classification")
		}
	}
	if primary.calls.Load() != 0 {
		t.Fatalf("disabled engine should not count keywords")
	}
}

func TestWindowExpiry(t *testing.T) {
	e, _, _, clock, _ := newTestEngine(t, Config{Threshold: 1, Window: time.Hour})
	ctx := context.Background()

	if e.ObserveAndCheck(ctx, "alpha beta") {
		t.Fatalf("first title should not be spam")
	}
	clock.Advance(2 * time.Hour)
	if e.ObserveAndCheck(ctx, "alpha gamma") {
		t.Fatalf("occurrence outside the window should not count")
	}
	if !e.ObserveAndCheck(ctx, "alpha delta") {
		t.Fatalf("occurrence inside the window should count")
	}
}

func TestFailoverLogsTransitionOnce(t *testing.T) {
	e, primary, secondary, _, logs := newTestEngine(t, Config{Threshold: 100, Window: time.Hour, ProbeInterval: time.Minute})
	primary.fail.Store(true)
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Classify(ctx, "alpha beta")
		}()
	}
	wg.Wait()

	if got := logs.count(msgUnavailable); got != 1 {
		t.Fatalf("transition logged %d times; want 1", got)
	}
	if e.Available() {
		t.Fatalf("engine should report primary unavailable")
	}
	if secondary.count("alpha") != callers || secondary.count("beta") != callers {
		t.Fatalf("secondary should serve every increment: alpha=%d beta=%d", secondary.count("alpha"), secondary.count("beta"))
	}

	// Still unavailable within the probe interval: no more primary calls.
	before := primary.calls.Load()
	e.Classify(ctx, "gamma delta")
	if primary.calls.Load() != before {
		t.Fatalf("primary should not be called before the probe interval elapses")
	}
}

func TestRecoveryLogsOnce(t *testing.T) {
	e, primary, _, clock, logs := newTestEngine(t, Config{Threshold: 100, Window: time.Hour, ProbeInterval: time.Minute})
	ctx := context.Background()

	e.MarkUnavailable(errTierDown)
	if e.Available() {
		t.Fatalf("MarkUnavailable should flip availability")
	}

	clock.Advance(2 * time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Classify(ctx, "alpha beta")
		}()
	}
	wg.Wait()

	if got := logs.count(msgRecovered); got != 1 {
		t.Fatalf("recovery logged %d times; want 1", got)
	}
	if !e.Available() {
		t.Fatalf("engine should use the primary again after a successful probe")
	}
	if primary.count("alpha") == 0 {
		t.Fatalf("primary should receive increments after recovery")
	}
}

func TestFailedProbeKeepsSecondary(t *testing.T) {
	e, primary, secondary, clock, logs := newTestEngine(t, Config{Threshold: 100, Window: time.Hour, ProbeInterval: time.Minute})
	primary.fail.Store(true)
	ctx := context.Background()

	e.Classify(ctx, "alpha")
	clock.Advance(2 * time.Minute)
	e.Classify(ctx, "alpha")

	if e.Available() {
		t.Fatalf("failed probe must not restore availability")
	}
	if logs.count(msgRecovered) != 0 {
		t.Fatalf("no recovery expected")
	}
	if secondary.count("alpha") != 2 {
		t.Fatalf("secondary count = %d; want 2", secondary.count("alpha"))
	}
}

func TestBothTiersDownNeverSpam(t *testing.T) {
	e, primary, secondary, _, _ := newTestEngine(t, Config{Threshold: 1, Window: time.Hour})
	primary.fail.Store(true)
	secondary.fail.Store(true)

	for i := 0; i < 3; i++ {
		if e.ObserveAndCheck(context.Background(), "alpha beta") {
			t.Fatalf("tier failures must not classify as spam")
		}
	}
}

func TestNilPrimaryUsesSecondary(t *testing.T) {
	clock := newTestClock()
	secondary := newMemoryTier("secondary", clock.Now)
	e, err := NewEngine(nil, secondary, Config{Threshold: 1, Window: time.Hour}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if e.Available() {
		t.Fatalf("engine without primary should report unavailable")
	}
	e.Classify(context.Background(), "alpha")
	if !e.ObserveAndCheck(context.Background(), "alpha") {
		t.Fatalf("second occurrence should be spam with threshold 1")
	}
}

func TestResetToleratesPrimaryFailure(t *testing.T) {
	e, primary, _, _, _ := newTestEngine(t, Config{Window: time.Hour})
	ctx := context.Background()
	e.Record(ctx, "alpha beta", nil)

	primary.fail.Store(true)
	n, err := e.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n != 2 {
		t.Fatalf("Reset removed %d; want 2 from the secondary", n)
	}
}

func TestSweepRequiresSweeper(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, Config{})
	if _, err := e.Sweep(context.Background()); err == nil {
		t.Fatalf("expected an error for a tier without Sweep")
	}
}
