package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsbot/filter"
	"newsbot/spamfilter"
	"newsbot/types"
)

const sampleFile = `
channels:
  - name: breaking
    query: 속보
    webhook_url: ${TEST_BREAKING_WEBHOOK}
    prefix: "[속보]"
    require_query_in_title: true
  - name: tech
    source: rss
    feed_url: https://example.com/feed.xml
    webhook_url: https://hooks.example.com/tech
exclusions:
  keywords:
    all: [광고, 협찬]
    breaking: [운세]
  publishers: [스팸일보]
publishers:
  example.com: 예시일보
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channels.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_BREAKING_WEBHOOK", "https://hooks.example.com/breaking")
	t.Setenv("CHANNELS_FILE", writeFile(t, sampleFile))
	t.Setenv("NAVER_CLIENT_ID", "id")
	t.Setenv("NAVER_CLIENT_SECRET", "secret")
	t.Setenv("POLL_INTERVAL", "90s")
	t.Setenv("SPAM_THRESHOLD", "5")
	t.Setenv("SLACK_MAX_ATTEMPTS", "2")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "k1:9092, k2:9092,")
	t.Setenv("S3_PREFIX", "/archive/")
	t.Setenv("REPORT_CHANNEL", "tech")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PollInterval != 90*time.Second || cfg.Spam.Threshold != 5 || cfg.Retry.MaxAttempts != 2 {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if cfg.PageSize != DefaultPageSize || cfg.Port != DefaultPort {
		t.Fatalf("defaults not applied: page=%d port=%s", cfg.PageSize, cfg.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.S3.Prefix != "archive" {
		t.Fatalf("prefix = %q", cfg.S3.Prefix)
	}

	breaking, ok := cfg.Channel("breaking")
	if !ok || breaking.WebhookURL != "https://hooks.example.com/breaking" || breaking.Source != types.SourceNaver {
		t.Fatalf("breaking = %+v", breaking)
	}
	if !breaking.RequireQueryInTitle || breaking.Prefix != "[속보]" {
		t.Fatalf("breaking = %+v", breaking)
	}
	if len(cfg.Exclusions.Keywords[filter.ScopeAll]) != 2 || cfg.Publishers["example.com"] != "예시일보" {
		t.Fatalf("rules = %+v, publishers = %v", cfg.Exclusions, cfg.Publishers)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("CHANNELS_FILE", writeFile(t, sampleFile))
	t.Setenv("MAX_CONCURRENCY", "many")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "MAX_CONCURRENCY") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			NaverClientID:     "id",
			NaverClientSecret: "secret",
			PollInterval:      time.Minute,
			Spam:              spamfilter.Config{Threshold: spamfilter.DefaultThreshold},
			Channels: []types.Channel{
				{Name: "a", Source: types.SourceNaver, Query: "q", WebhookURL: "https://h/a"},
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(c *Config){
		"empty name": func(c *Config) { c.Channels[0].Name = " " },
		"duplicate": func(c *Config) {
			c.Channels = append(c.Channels, c.Channels[0])
		},
		"unknown source":   func(c *Config) { c.Channels[0].Source = "twitter" },
		"rss without feed": func(c *Config) { c.Channels[0].Source = types.SourceRSS },
		"no webhook":       func(c *Config) { c.Channels[0].WebhookURL = "" },
		"no credentials":   func(c *Config) { c.NaverClientSecret = "" },
		"no channels":      func(c *Config) { c.Channels = nil },
		"report channel":   func(c *Config) { c.ReportChannel = "missing" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestParseFileDefaultsSource(t *testing.T) {
	f, err := ParseFile([]byte("channels:\n  - name: x\n    query: y\n"))
	if err != nil {
		t.Fatal(err)
	}
	if f.Channels[0].Source != types.SourceNaver {
		t.Fatalf("source = %q", f.Channels[0].Source)
	}
	if _, err := ParseFile([]byte("channels: [")); err == nil {
		t.Fatalf("malformed YAML should fail")
	}
}
