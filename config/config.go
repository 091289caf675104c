package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"newsbot/filter"
	"newsbot/slack"
	"newsbot/spamfilter"
	"newsbot/types"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for values not set in the environment
const (
	DefaultPort           = "8080"
	DefaultDBPath         = "newsbot.db"
	DefaultChannelsFile   = "channels.yaml"
	DefaultPollInterval   = time.Minute
	DefaultPageSize       = 50
	DefaultSort           = "date"
	DefaultMaxConcurrency = 8
	DefaultSlackTimeout   = 10 * time.Second
	DefaultReportCron     = "0 9 * * *"
	DefaultTimezone       = "Asia/Seoul"
	DefaultKafkaGroupID   = "newsbot"
)

// Config is the full runtime configuration
type Config struct {
	Port         string
	DBPath       string
	ChannelsFile string

	Redis spamfilter.RedisConfig
	Spam  spamfilter.Config

	PollInterval   time.Duration
	PageSize       int
	Sort           string
	MaxConcurrency int

	NaverAPIURL       string
	NaverClientID     string
	NaverClientSecret string

	SlackTimeout time.Duration
	Retry        slack.RetryPolicy

	ReportCron    string
	ReportChannel string
	Location      *time.Location

	CohereAPIKey string
	CohereModel  string

	S3 S3

	Kafka Kafka

	LogLevel  string
	LogFormat string

	// from the channels file
	Channels   []types.Channel
	Exclusions filter.Rules
	Publishers map[string]string
}

// S3 configures the optional article archive. Empty Bucket disables it.
type S3 struct {
	Bucket       string
	Region       string
	Profile      string
	Prefix       string
	UsePathStyle bool
}

// Kafka configures the optional trigger consumer and event producer.
// Empty Brokers disables both.
type Kafka struct {
	Brokers      []string
	TriggerTopic string
	EventsTopic  string
	GroupID      string
}

// File is the YAML channels file
type File struct {
	Channels   []types.Channel   `yaml:"channels"`
	Exclusions filter.Rules      `yaml:"exclusions"`
	Publishers map[string]string `yaml:"publishers"`
}

// Load reads .env (if present), the environment and the channels file
func Load() (*Config, error) {
	_ = godotenv.Load()

	var env envReader
	cfg := &Config{
		Port:         getEnvOrDefault("PORT", DefaultPort),
		DBPath:       getEnvOrDefault("DB_PATH", DefaultDBPath),
		ChannelsFile: getEnvOrDefault("CHANNELS_FILE", DefaultChannelsFile),
		Redis: spamfilter.RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASS"),
			DB:        env.int("REDIS_DB", 0),
			KeyPrefix: os.Getenv("REDIS_KEY_PREFIX"),
		},
		Spam: spamfilter.Config{
			Threshold:     env.int("SPAM_THRESHOLD", spamfilter.DefaultThreshold),
			Window:        env.duration("SPAM_WINDOW", spamfilter.DefaultWindow),
			ProbeInterval: env.duration("CACHE_PROBE_INTERVAL", spamfilter.DefaultProbeInterval),
		},
		PollInterval:      env.duration("POLL_INTERVAL", DefaultPollInterval),
		PageSize:          env.int("SEARCH_PAGE_SIZE", DefaultPageSize),
		Sort:              getEnvOrDefault("SEARCH_SORT", DefaultSort),
		MaxConcurrency:    env.int("MAX_CONCURRENCY", DefaultMaxConcurrency),
		NaverAPIURL:       os.Getenv("NAVER_API_URL"),
		NaverClientID:     os.Getenv("NAVER_CLIENT_ID"),
		NaverClientSecret: os.Getenv("NAVER_CLIENT_SECRET"),
		SlackTimeout:      env.duration("SLACK_TIMEOUT", DefaultSlackTimeout),
		ReportCron:        getEnvOrDefault("REPORT_CRON", DefaultReportCron),
		ReportChannel:     os.Getenv("REPORT_CHANNEL"),
		CohereAPIKey:      os.Getenv("COHERE_API_KEY"),
		CohereModel:       os.Getenv("COHERE_MODEL"),
		S3: S3{
			Bucket:       strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Region:       strings.TrimSpace(os.Getenv("S3_REGION")),
			Profile:      strings.TrimSpace(os.Getenv("S3_PROFILE")),
			Prefix:       strings.Trim(strings.TrimSpace(os.Getenv("S3_PREFIX")), "/"),
			UsePathStyle: env.bool("S3_USE_PATH_STYLE", false),
		},
		Kafka: Kafka{
			Brokers:      splitList(os.Getenv("KAFKA_BOOTSTRAP_SERVERS")),
			TriggerTopic: os.Getenv("KAFKA_TRIGGER_TOPIC"),
			EventsTopic:  os.Getenv("KAFKA_EVENTS_TOPIC"),
			GroupID:      getEnvOrDefault("KAFKA_GROUP_ID", DefaultKafkaGroupID),
		},
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	retry := slack.DefaultRetryPolicy()
	retry.MaxAttempts = env.int("SLACK_MAX_ATTEMPTS", retry.MaxAttempts)
	retry.BaseDelay = env.duration("SLACK_BASE_DELAY", retry.BaseDelay)
	retry.JitterFraction = env.float("SLACK_JITTER", retry.JitterFraction)
	cfg.Retry = retry

	if env.err != nil {
		return nil, env.err
	}

	loc, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", DefaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE: %w", err)
	}
	cfg.Location = loc

	file, err := LoadFile(cfg.ChannelsFile)
	if err != nil {
		return nil, err
	}
	cfg.Channels = file.Channels
	cfg.Exclusions = file.Exclusions
	cfg.Publishers = file.Publishers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the channels file, expanding ${VAR} references first
// so webhook URLs and credentials can stay in the environment.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read channels file: %w", err)
	}
	return ParseFile([]byte(os.ExpandEnv(string(data))))
}

// ParseFile decodes a channels file
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse channels file: %w", err)
	}
	for i := range f.Channels {
		if f.Channels[i].Source == "" {
			f.Channels[i].Source = types.SourceNaver
		}
	}
	return &f, nil
}

// Validate checks the parts of the configuration that would otherwise fail at poll time
func (c *Config) Validate() error {
	var errs []error
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("no channels configured"))
	}
	seen := make(map[string]bool, len(c.Channels))
	naver := false
	for i, ch := range c.Channels {
		name := strings.TrimSpace(ch.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("channel %d: empty name", i))
			continue
		case seen[name]:
			errs = append(errs, fmt.Errorf("channel %q: duplicate name", name))
		}
		seen[name] = true

		if ch.WebhookURL == "" {
			errs = append(errs, fmt.Errorf("channel %q: webhook_url is required", name))
		}
		switch ch.Source {
		case types.SourceNaver:
			naver = true
			if ch.Query == "" {
				errs = append(errs, fmt.Errorf("channel %q: query is required for naver", name))
			}
		case types.SourceRSS:
			if ch.FeedURL == "" {
				errs = append(errs, fmt.Errorf("channel %q: feed_url is required for rss", name))
			}
		default:
			errs = append(errs, fmt.Errorf("channel %q: unknown source %q", name, ch.Source))
		}
	}
	if naver && (c.NaverClientID == "" || c.NaverClientSecret == "") {
		errs = append(errs, errors.New("NAVER_CLIENT_ID and NAVER_CLIENT_SECRET are required for naver channels"))
	}
	if c.ReportChannel != "" && !seen[c.ReportChannel] {
		errs = append(errs, fmt.Errorf("REPORT_CHANNEL %q is not a configured channel", c.ReportChannel))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.Spam.Threshold < 1 {
		errs = append(errs, errors.New("SPAM_THRESHOLD must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Channel returns the named channel
func (c *Config) Channel(name string) (types.Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return types.Channel{}, false
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envReader parses typed variables and keeps the first error
type envReader struct {
	err error
}

func (r *envReader) fail(key, val string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("config: %s=%q: %w", key, val, err)
	}
}

func (r *envReader) int(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		r.fail(key, val, err)
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		r.fail(key, val, err)
		return def
	}
	return f
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		r.fail(key, val, err)
		return def
	}
	return d
}

func (r *envReader) bool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		r.fail(key, val, err)
		return def
	}
	return b
}
