package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. INCR is natively atomic, so the
// increment-and-get contract holds across any number of processes sharing
// the same Redis.
//
// Counters carry a TTL sized to outlive their period by a comfortable
// margin, so expired-period counters age out without a pruning job;
// RedisStore therefore does not implement Prunable.
type RedisStore struct {
	client     *redis.Client
	keyPrefix  string
	dailyTTL   time.Duration
	monthlyTTL time.Duration
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	// Addr is the Redis server address ("host:port").
	Addr string

	// Password is the Redis AUTH password, empty for none.
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces all counter keys.
	// Default: "sendgate"
	KeyPrefix string

	// DailyTTL is the expiry set on daily counters.
	// Default: 48 hours
	DailyTTL time.Duration

	// MonthlyTTL is the expiry set on monthly counters.
	// Default: 35 days
	MonthlyTTL time.Duration
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "sendgate"
	}
	if cfg.DailyTTL == 0 {
		cfg.DailyTTL = 48 * time.Hour
	}
	if cfg.MonthlyTTL == 0 {
		cfg.MonthlyTTL = 35 * 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		dailyTTL:   cfg.DailyTTL,
		monthlyTTL: cfg.MonthlyTTL,
	}, nil
}

// counterKey renders the Redis key for a counter tuple. The scope comes
// last so Sum can match every scope of a window with a single glob.
func (r *RedisStore) counterKey(k Key) string {
	return fmt.Sprintf("%s:ctr:%s:%s:%s:%s:%s",
		r.keyPrefix, k.WorkspaceID, k.Channel, k.PeriodType, k.PeriodKey, k.ScopeID)
}

// Read returns the current count for a key, 0 if absent.
func (r *RedisStore) Read(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	val, err := r.client.Get(ctx, r.counterKey(key)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter value %q: %w", val, err)
	}
	return count, nil
}

// IncrementAndGet atomically increments the counter for a key, creating it
// with count 1 if absent, and returns the post-increment value. The TTL is
// set only when missing, so it is anchored to the counter's first use.
func (r *RedisStore) IncrementAndGet(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	ttl := r.dailyTTL
	if key.PeriodType == "monthly" {
		ttl = r.monthlyTTL
	}

	redisKey := r.counterKey(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return incr.Val(), nil
}

// Sum returns the total count across all scopes for a workspace, channel,
// period type, and period key. It scans the window's key glob and sums the
// values; the scan is cursor-based and does not block Redis.
func (r *RedisStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	pattern := fmt.Sprintf("%s:ctr:%s:%s:%s:%s:*",
		r.keyPrefix, workspaceID, channel, periodType, periodKey)

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan counters: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch counters: %w", err)
	}

	var total int64
	for i, val := range vals {
		str, ok := val.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		count, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt counter value %q at %s: %w", str, keys[i], err)
		}
		total += count
	}
	return total, nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
