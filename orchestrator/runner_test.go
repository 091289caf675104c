package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"newsbot/types"
)

type fakeSource struct {
	items []types.Item
	err   error
}

func (f *fakeSource) Search(ctx context.Context, query string, pageSize, offset int, sortOrder string) ([]types.Item, error) {
	return f.items, f.err
}

// fakeProcessor reports every item as delivered and can block until released
type fakeProcessor struct {
	mu      sync.Mutex
	batches [][]types.Item
	started chan struct{}
	release chan struct{}
}

func (f *fakeProcessor) Process(ctx context.Context, ch types.Channel, items []types.Item, watermark time.Time) *types.CycleReport {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	f.batches = append(f.batches, items)
	f.mu.Unlock()

	report := &types.CycleReport{Channel: ch.Name, Fetched: len(items), Counts: map[types.Outcome]int{}}
	for _, it := range items {
		if !it.PublishedAt.After(watermark) {
			report.Counts[types.OutcomeStale]++
			continue
		}
		report.Eligible++
		report.Counts[types.OutcomeDelivered]++
		if it.PublishedAt.After(report.Watermark) {
			report.Watermark = it.PublishedAt
		}
	}
	return report
}

type fakeTracker struct {
	mu    sync.Mutex
	marks map[string]time.Time
	err   error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{marks: make(map[string]time.Time)}
}

func (f *fakeTracker) Get(ctx context.Context, channel string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.marks[channel]
	return t, ok, f.err
}

func (f *fakeTracker) Advance(ctx context.Context, channel string, t time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !t.After(f.marks[channel]) {
		return false, nil
	}
	f.marks[channel] = t
	return true, nil
}

var (
	base       = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	breaking   = types.Channel{Name: "breaking", Query: "속보"}
	exclusive  = types.Channel{Name: "exclusive", Query: "단독", RequireQueryInTitle: true}
	sampleFeed = []types.Item{
		{Title: "[속보] 하나", Link: "https://example.com/1", PublishedAt: base.Add(time.Minute)},
		{Title: "[단독] 둘", Link: "https://example.com/2", PublishedAt: base.Add(2 * time.Minute)},
	}
)

func newTestRunner(t *testing.T, src FeedSource, proc Processor, tracker Watermarks) *Runner {
	t.Helper()
	sources := map[string]FeedSource{"breaking": src, "exclusive": src}
	r, err := NewRunner([]types.Channel{breaking, exclusive}, sources, proc, tracker, nil, RunnerConfig{PageSize: 10}, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestRunOnceAdvancesWatermark(t *testing.T) {
	tracker := newFakeTracker()
	r := newTestRunner(t, &fakeSource{items: sampleFeed}, &fakeProcessor{}, tracker)

	report, err := r.RunOnce(context.Background(), "breaking")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !report.Advanced || !tracker.marks["breaking"].Equal(base.Add(2*time.Minute)) {
		t.Fatalf("watermark not advanced: %+v, %v", report, tracker.marks["breaking"])
	}

	again, err := r.RunOnce(context.Background(), "breaking")
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if again.Count(types.OutcomeStale) != 2 || again.Advanced {
		t.Fatalf("second cycle should see only stale items: %+v", again)
	}

	status := r.Board().GetStatus()
	if len(status.Channels) != 2 || status.Channels[0].Name != "breaking" || status.Channels[0].Running {
		t.Fatalf("status = %+v", status.Channels)
	}
	if status.Channels[0].LastReport != again {
		t.Fatalf("board should keep the latest report")
	}
}

func TestRunOnceUnknownChannel(t *testing.T) {
	r := newTestRunner(t, &fakeSource{}, &fakeProcessor{}, newFakeTracker())
	if _, err := r.RunOnce(context.Background(), "sports"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("err = %v; want ErrUnknownChannel", err)
	}
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	proc := &fakeProcessor{started: make(chan struct{}), release: make(chan struct{})}
	r := newTestRunner(t, &fakeSource{items: sampleFeed}, proc, newFakeTracker())

	done := make(chan error, 1)
	go func() {
		_, err := r.RunOnce(context.Background(), "breaking")
		done <- err
	}()
	<-proc.started

	if _, err := r.RunOnce(context.Background(), "breaking"); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("err = %v; want ErrCycleInProgress", err)
	}
	if !r.Board().GetStatus().Channels[0].Running {
		t.Fatalf("board should show the channel as running")
	}

	close(proc.release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
}

func TestRunOnceFetchErrorKeepsWatermark(t *testing.T) {
	tracker := newFakeTracker()
	r := newTestRunner(t, &fakeSource{err: fmt.Errorf("upstream 500")}, &fakeProcessor{}, tracker)

	if _, err := r.RunOnce(context.Background(), "breaking"); err == nil {
		t.Fatalf("expected fetch error")
	}
	if _, ok := tracker.marks["breaking"]; ok {
		t.Fatalf("watermark must not move on a failed cycle")
	}
	if r.Board().GetStatus().Channels[0].LastError == "" {
		t.Fatalf("board should record the error")
	}
}

func TestRunOnceCancelledKeepsWatermark(t *testing.T) {
	tracker := newFakeTracker()
	r := newTestRunner(t, &fakeSource{items: sampleFeed}, &fakeProcessor{}, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RunOnce(ctx, "breaking"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if _, ok := tracker.marks["breaking"]; ok {
		t.Fatalf("watermark must not move after cancellation")
	}
}

func TestRequireQueryInTitle(t *testing.T) {
	proc := &fakeProcessor{}
	r := newTestRunner(t, &fakeSource{items: sampleFeed}, proc, newFakeTracker())

	report, err := r.RunOnce(context.Background(), "exclusive")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(proc.batches) != 1 || len(proc.batches[0]) != 1 || proc.batches[0][0].Title != "[단독] 둘" {
		t.Fatalf("only titles holding the query should reach the processor: %+v", proc.batches)
	}
	if report.Fetched != 2 {
		t.Fatalf("fetched = %d; want the unfiltered count", report.Fetched)
	}
}

func TestNewRunnerRequiresSources(t *testing.T) {
	_, err := NewRunner([]types.Channel{breaking}, map[string]FeedSource{}, &fakeProcessor{}, newFakeTracker(), nil, RunnerConfig{}, nil)
	if err == nil {
		t.Fatalf("expected error for a channel without a source")
	}
}

func TestRunAll(t *testing.T) {
	tracker := newFakeTracker()
	r := newTestRunner(t, &fakeSource{items: sampleFeed}, &fakeProcessor{}, tracker)

	if errs := r.RunAll(context.Background()); len(errs) != 0 {
		t.Fatalf("RunAll errors: %v", errs)
	}
	if len(tracker.marks) != 2 {
		t.Fatalf("every channel should advance, got %v", tracker.marks)
	}
}

func TestStatusBoardLogRing(t *testing.T) {
	b := NewStatusBoard([]string{"a"}, func() bool { return true })
	for i := 0; i < 60; i++ {
		b.AddLog("a", fmt.Sprintf("line %d", i))
	}
	status := b.GetStatus()
	if len(status.Logs) != defaultMaxLogs {
		t.Fatalf("logs = %d; want %d", len(status.Logs), defaultMaxLogs)
	}
	if status.Logs[len(status.Logs)-1].Message != "line 59" {
		t.Fatalf("newest log should be kept last")
	}
	if !status.CacheAvailable {
		t.Fatalf("cache availability should come from the callback")
	}
}
