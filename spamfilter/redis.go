package spamfilter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "newsbot:"
	scanBatchSize    = 500
)

// incrementScript increments a counter and arms its expiry on creation.
// A key left without a TTL is re-armed as well.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisConfig configures the Redis connection and key namespace
type RedisConfig struct {
	Addr      string // e.g. localhost:6379
	Password  string
	DB        int
	KeyPrefix string // default "newsbot:"
	// DialTimeout bounds connection attempts so a dead cache fails fast
	DialTimeout time.Duration
}

// RedisTier is the volatile primary counter tier
type RedisTier struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTier creates the Redis client. It does not verify connectivity; call Ping.
func NewRedisTier(cfg RedisConfig) *RedisTier {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.DialTimeout,
	})
	return NewRedisTierWithClient(client, cfg.KeyPrefix)
}

// NewRedisTierWithClient wraps a preconfigured client
func NewRedisTierWithClient(client redis.UniversalClient, prefix string) *RedisTier {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisTier{client: client, prefix: prefix}
}

// Name identifies the tier in logs
func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) key(token string) string {
	return r.prefix + "kw:" + token
}

// Increment runs INCR and sets the window expiry when the counter is created
func (r *RedisTier) Increment(ctx context.Context, token string, window time.Duration) (int64, error) {
	n, err := incrementScript.Run(ctx, r.client, []string{r.key(token)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment %q: %w", token, err)
	}
	return n - 1, nil
}

// Reset deletes every counter key using a cursor scan, never KEYS
func (r *RedisTier) Reset(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	match := r.prefix + "kw:*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis delete: %w", err)
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping checks Redis is reachable
func (r *RedisTier) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client
func (r *RedisTier) Close() error {
	return r.client.Close()
}
