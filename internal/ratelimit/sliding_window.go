package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindowScript prunes expired entries, records the current request,
// and counts the window in one atomic round trip. Timestamps are in
// microseconds; the key expires shortly after the window so idle keys
// do not accumulate.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
redis.call('ZADD', key, now, member)
local count = redis.call('ZCARD', key)
redis.call('EXPIRE', key, math.floor(window / 1000000) + 5)

if count > limit then
  redis.call('ZREM', key, member)
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local reset = window
  if oldest[2] then
    reset = (tonumber(oldest[2]) + window) - now
  end
  return {0, count - 1, reset}
end

return {1, count, 0}
`)

// Result is one admission decision from the limiter.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAfter time.Duration
}

// scriptRunner is the slice of the Redis client the limiter needs.
type scriptRunner interface {
	Run(ctx context.Context, keys []string, args ...interface{}) ([]interface{}, error)
}

type redisScriptRunner struct {
	client *redis.Client
}

func (r redisScriptRunner) Run(ctx context.Context, keys []string, args ...interface{}) ([]interface{}, error) {
	return slidingWindowScript.Run(ctx, r.client, keys, args...).Slice()
}

// Limiter enforces a fixed-size sliding window per key. When Redis is
// unreachable it fails open and reports the error to the caller.
type Limiter struct {
	runner scriptRunner
	window time.Duration
	seq    atomic.Int64
	logger *zap.Logger
}

func NewLimiter(client *redis.Client, logger *zap.Logger) *Limiter {
	return newLimiter(redisScriptRunner{client: client}, logger)
}

func newLimiter(runner scriptRunner, logger *zap.Logger) *Limiter {
	return &Limiter{
		runner: runner,
		window: time.Minute,
		logger: logger,
	}
}

// Allow records one request against key and reports whether it fits
// inside the window. On a limiter failure the returned Result admits the
// request and the error is non-nil.
func (l *Limiter) Allow(ctx context.Context, key string, limit int64) (Result, error) {
	if limit <= 0 {
		return Result{Allowed: true, Limit: limit, Remaining: 0}, nil
	}

	now := time.Now().UnixMicro()
	member := fmt.Sprintf("%d-%d", now, l.seq.Add(1))

	raw, err := l.runner.Run(ctx, []string{key}, now, l.window.Microseconds(), limit, member)
	if err != nil {
		l.logger.Warn("rate limiter unavailable, admitting request", zap.Error(err))
		return Result{Allowed: true, Limit: limit, Remaining: limit}, err
	}
	if len(raw) != 3 {
		l.logger.Warn("unexpected limiter script reply", zap.Int("fields", len(raw)))
		return Result{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("unexpected script reply length %d", len(raw))
	}

	allowed := castToInt(raw[0]) == 1
	count := castToInt(raw[1])
	resetMicros := castToInt(raw[2])

	result := Result{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  limit - count,
		ResetAfter: time.Duration(resetMicros) * time.Microsecond,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

func castToInt(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		var parsed int64
		_, _ = fmt.Sscan(v, &parsed)
		return parsed
	default:
		return 0
	}
}
