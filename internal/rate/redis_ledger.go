package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/zegh6389/news-instagram-mcp/pkg/config"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
)

// reserveScript checks both ceilings and increments both buckets in one
// atomic step. Bucket TTLs outlive the window they cover so late reads
// still see the counters.
var reserveScript = redis.NewScript(`
local hour = tonumber(redis.call('GET', KEYS[1]) or '0')
local day = tonumber(redis.call('GET', KEYS[2]) or '0')
if hour >= tonumber(ARGV[1]) or day >= tonumber(ARGV[2]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('INCR', KEYS[2])
redis.call('EXPIRE', KEYS[1], 7200)
redis.call('EXPIRE', KEYS[2], 172800)
return 1
`)

// RedisLedger keeps the rate buckets in Redis so the ceilings hold
// across processes
type RedisLedger struct {
	client *redis.Client
	limits Limits
}

// NewRedisLedger connects to Redis and returns a ledger
func NewRedisLedger(cfg *config.RedisConfig, limits Limits) (*RedisLedger, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return &RedisLedger{client: client, limits: limits}, nil
}

func (l *RedisLedger) hourKey(account string, now time.Time) string {
	return "rate:" + account + ":h:" + hourBucket(now)
}

func (l *RedisLedger) dayKey(account string, now time.Time) string {
	return "rate:" + account + ":d:" + dayBucket(now)
}

// Reserve consumes one attempt if both ceilings allow it
func (l *RedisLedger) Reserve(ctx context.Context, account string, now time.Time) (bool, error) {
	keys := []string{l.hourKey(account, now), l.dayKey(account, now)}
	res, err := reserveScript.Run(ctx, l.client, keys, l.limits.PerHour, l.limits.PerDay).Int()
	if err != nil {
		return false, fmt.Errorf("rate reserve failed: %w", err)
	}
	return res == 1, nil
}

// Counts reports the current bucket counters
func (l *RedisLedger) Counts(ctx context.Context, account string, now time.Time) (Counts, error) {
	pipe := l.client.Pipeline()
	hourCmd := pipe.Get(ctx, l.hourKey(account, now))
	dayCmd := pipe.Get(ctx, l.dayKey(account, now))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Counts{}, fmt.Errorf("rate counts failed: %w", err)
	}

	var counts Counts
	if v, err := hourCmd.Int64(); err == nil {
		counts.Hour = v
	}
	if v, err := dayCmd.Int64(); err == nil {
		counts.Day = v
	}
	return counts, nil
}

// Close closes the Redis connection
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
