package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes expired keyword counters
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// DailyReporter sends the report for one calendar day
type DailyReporter interface {
	Run(ctx context.Context, day time.Time) error
}

// Scheduler drives poll cycles, counter sweeps and the daily report from cron
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	loc    *time.Location
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Overlapping runs of the same entry are skipped.
func NewScheduler(runner *Runner, loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		loc:    loc,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddPolling schedules one cycle per channel every interval
func (s *Scheduler) AddPolling(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	for _, ch := range s.runner.Channels() {
		name := ch.Name
		_, err := s.cron.AddFunc("@every "+interval.String(), func() {
			_, err := s.runner.RunOnce(s.ctx, name)
			if errors.Is(err, ErrCycleInProgress) {
				s.logger.Info("orchestrator: cron skipped, cycle in progress", "channel", name)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to add poll job for %s: %w", name, err)
		}
	}
	return nil
}

// AddSweep schedules removal of expired counters every interval
func (s *Scheduler) AddSweep(interval time.Duration, sweeper Sweeper) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	_, err := s.cron.AddFunc("@every "+interval.String(), func() {
		n, err := sweeper.Sweep(s.ctx)
		if err != nil {
			s.logger.Error("orchestrator: counter sweep failed", "error", err)
			return
		}
		s.logger.Info("orchestrator: swept expired keyword counters", "removed", n)
	})
	if err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}
	return nil
}

// AddReport schedules the daily report for the previous day on spec
func (s *Scheduler) AddReport(spec string, reporter DailyReporter) error {
	_, err := s.cron.AddFunc(spec, func() {
		day := time.Now().In(s.loc).AddDate(0, 0, -1)
		if err := reporter.Run(s.ctx, day); err != nil {
			s.logger.Error("orchestrator: daily report failed", "day", day.Format(time.DateOnly), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add report job %q: %w", spec, err)
	}
	return nil
}

// Entries returns the number of scheduled jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start begins running scheduled jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("orchestrator: scheduler started", "jobs", s.Entries())
}

// Stop stops scheduling, cancels running jobs and waits for them until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
