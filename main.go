package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"newsbot/api"
	"newsbot/common"
	"newsbot/config"
	"newsbot/deduplication"
	"newsbot/dispatch"
	"newsbot/filter"
	"newsbot/naver"
	"newsbot/orchestrator"
	"newsbot/pollstate"
	"newsbot/rssfeeds"
	"newsbot/shared/kafka"
	"newsbot/slack"
	"newsbot/spamfilter"
	"newsbot/storage"
	"newsbot/summary"
	"newsbot/types"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "newsbot: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("newsbot: fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The database is required; the counter cache is not.
	store, err := storage.Open(cfg.DBPath, storage.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	engine, redisTier, err := newCounterEngine(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	if redisTier != nil {
		defer redisTier.Close()
	}

	dedup, err := deduplication.NewDeduplicator(store, logger)
	if err != nil {
		return err
	}

	sink := slack.NewClient(cfg.SlackTimeout, cfg.Retry, logger)
	opts := []dispatch.Option{
		dispatch.WithMaxConcurrency(cfg.MaxConcurrency),
		dispatch.WithPublishers(filter.NewDirectory(cfg.Publishers)),
		dispatch.WithFormatter(slack.NewFormatter(cfg.Location)),
		dispatch.WithLogger(logger),
	}
	if archiver := newArchiver(ctx, cfg, logger); archiver != nil {
		opts = append(opts, dispatch.WithArchiver(archiver))
	}
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.EventsTopic != "" {
		producer, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EventsTopic,
			Logger:  logger,
		})
		if err != nil {
			logger.Warn("newsbot: delivery events disabled", "error", err)
		} else {
			defer producer.Close()
			opts = append(opts, dispatch.WithEventPublisher(producer))
		}
	}

	coordinator, err := dispatch.New(filter.New(cfg.Exclusions), engine, dedup, sink, store, opts...)
	if err != nil {
		return err
	}

	tracker := pollstate.NewTracker(store, logger)
	names := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		names = append(names, ch.Name)
	}
	board := orchestrator.NewStatusBoard(names, engine.Available)
	if marks, err := tracker.All(ctx); err != nil {
		logger.Warn("newsbot: could not load watermarks", "error", err)
	} else {
		for name, t := range marks {
			board.SetWatermark(name, t)
		}
	}

	runner, err := orchestrator.NewRunner(cfg.Channels, newSources(cfg, logger), coordinator, tracker, board,
		orchestrator.RunnerConfig{PageSize: cfg.PageSize, Sort: cfg.Sort}, logger)
	if err != nil {
		return err
	}

	scheduler := orchestrator.NewScheduler(runner, cfg.Location, logger)
	if err := scheduler.AddPolling(cfg.PollInterval); err != nil {
		return err
	}
	if err := scheduler.AddSweep(engine.Window(), engine); err != nil {
		return err
	}

	deps := api.Dependencies{
		Runner:     runner,
		Board:      board,
		Store:      store,
		Counters:   engine,
		Watermarks: tracker,
		Cache:      engine,
		Location:   cfg.Location,
		Logger:     logger,
	}
	if reporter := newReporter(cfg, store, sink, logger); reporter != nil {
		if err := scheduler.AddReport(cfg.ReportCron, reporter); err != nil {
			return err
		}
		deps.Reporter = reporter
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.TriggerTopic != "" {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.TriggerTopic,
			GroupID: cfg.Kafka.GroupID,
			Handler: kafka.NewTriggerHandler(runner, logger),
			Logger:  logger,
		})
		if err != nil {
			logger.Warn("newsbot: trigger consumer disabled", "error", err)
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
					logger.Error("newsbot: trigger consumer failed", "error", err)
				}
			}()
		}
	}

	server := api.NewServer(":"+cfg.Port, api.NewRouter(deps), logger)
	errc := server.Start()
	scheduler.Start()
	logger.Info("newsbot: started",
		"channels", len(cfg.Channels),
		"poll_interval", cfg.PollInterval,
		"cache", engine.Available())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	logger.Info("newsbot: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("newsbot: server shutdown", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("newsbot: scheduler shutdown", "error", err)
	}
	return serveErr
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newCounterEngine builds the keyword counters. A Redis outage at startup
// only degrades the engine to SQLite.
func newCounterEngine(ctx context.Context, cfg *config.Config, store *storage.Store, logger *slog.Logger) (*spamfilter.Engine, *spamfilter.RedisTier, error) {
	var redisTier *spamfilter.RedisTier
	var primary spamfilter.Tier
	if cfg.Redis.Addr != "" {
		redisTier = spamfilter.NewRedisTier(cfg.Redis)
		primary = redisTier
	}

	engine, err := spamfilter.NewEngine(primary, store.KeywordCounters(), cfg.Spam, logger)
	if err != nil {
		return nil, nil, err
	}
	if redisTier != nil {
		pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()
		if err := redisTier.Ping(pingCtx); err != nil {
			engine.MarkUnavailable(err)
		}
	} else {
		logger.Info("newsbot: REDIS_ADDR not set, counting keywords in sqlite")
	}
	return engine, redisTier, nil
}

func newSources(cfg *config.Config, logger *slog.Logger) map[string]orchestrator.FeedSource {
	sources := make(map[string]orchestrator.FeedSource, len(cfg.Channels))
	var naverClient *naver.Client
	var extractor *rssfeeds.Extractor
	for _, ch := range cfg.Channels {
		switch ch.Source {
		case types.SourceNaver:
			if naverClient == nil {
				naverClient = naver.NewClient(naver.Config{
					APIURL:       cfg.NaverAPIURL,
					ClientID:     cfg.NaverClientID,
					ClientSecret: cfg.NaverClientSecret,
				}, logger)
			}
			sources[ch.Name] = naverClient
		case types.SourceRSS:
			if extractor == nil {
				extractor = rssfeeds.NewExtractor(rssfeeds.WorkerCount, 0, logger)
			}
			sources[ch.Name] = rssfeeds.NewSource(ch.FeedURL, extractor, logger)
		}
	}
	return sources
}

// newArchiver returns nil when S3 is not configured or the bucket is unreachable
func newArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) *common.Archiver {
	if cfg.S3.Bucket == "" {
		return nil
	}
	initCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	client, err := common.NewS3(initCtx, common.S3Config{
		Region:       cfg.S3.Region,
		Profile:      cfg.S3.Profile,
		UsePathStyle: cfg.S3.UsePathStyle,
	})
	if err == nil {
		err = client.CheckBucket(initCtx, cfg.S3.Bucket)
	}
	if err != nil {
		logger.Warn("newsbot: article archive disabled", "bucket", cfg.S3.Bucket, "error", err)
		return nil
	}
	logger.Info("newsbot: archiving articles", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	return common.NewArchiver(client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.Location)
}

// newReporter returns nil when no report channel is configured
func newReporter(cfg *config.Config, store *storage.Store, sink *slack.Client, logger *slog.Logger) *summary.Reporter {
	ch, ok := cfg.Channel(cfg.ReportChannel)
	if cfg.ReportChannel == "" || !ok {
		return nil
	}
	var summarizer summary.Summarizer
	if cfg.CohereAPIKey != "" {
		summarizer = summary.NewCohereSummarizer(cfg.CohereAPIKey, cfg.CohereModel)
	}
	return summary.NewReporter(store, summarizer, sink, ch, cfg.Location, logger)
}
