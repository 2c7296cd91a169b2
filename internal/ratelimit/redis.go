package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"

	"enrich-relay/internal/common/logging"
)

const redisKeyPrefix = "ratelimit:actor:"

// admitScript prunes expired admissions, counts the remainder and records the
// new admission in one atomic step, so two concurrent checks for the same
// actor can never both pass a count that only has room for one of them. A
// rejection records nothing.
//
// KEYS[1] actor key; ARGV: window start, limit, score, member, ttl millis.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter keeps per-actor admission timestamps in a Redis sorted set,
// for deployments that want limits shared across replicas. Keys expire at
// twice the window, so Sweep is a no-op.
//
// On Redis errors Admit fails open: losing a rate-limit check is preferable
// to dropping user messages.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	logger logging.Logger
}

// NewRedis creates a Redis-backed limiter on an established connection.
func NewRedis(rdb *redis.Client, limit int, window time.Duration, logger logging.Logger) *RedisLimiter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RedisLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Admit reports whether the actor may proceed and records the admission.
func (l *RedisLimiter) Admit(actorID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := redisKeyPrefix + actorID
	now := time.Now().UnixNano()
	windowStart := now - l.window.Nanoseconds()
	// The nonce keeps members unique when two admissions land on the same
	// nanosecond.
	member := fmt.Sprintf("%d:%d", now, rand.Int63())

	admitted, err := admitScript.Run(ctx, l.rdb, []string{key},
		windowStart, l.limit, now, member, (2 * l.window).Milliseconds()).Int()
	if err != nil {
		l.logger.Warn("rate limit check failed, admitting",
			logging.String("actor", actorID), logging.Err(err))
		return true
	}
	return admitted == 1
}

// Sweep is a no-op; key expiry bounds memory.
func (l *RedisLimiter) Sweep() {}

var _ Limiter = (*RedisLimiter)(nil)
