package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, limit, window, nil), mr
}

func TestRedisLimiterAdmitSequence(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 2, time.Minute)

	assert.True(t, limiter.Admit("alice"))
	assert.True(t, limiter.Admit("alice"))
	assert.False(t, limiter.Admit("alice"))

	// Other actors have independent windows.
	assert.True(t, limiter.Admit("bob"))
}

func TestRedisLimiterRejectionRecordsNothing(t *testing.T) {
	limiter, mr := newTestRedisLimiter(t, 1, time.Minute)

	assert.True(t, limiter.Admit("alice"))
	assert.False(t, limiter.Admit("alice"))
	assert.False(t, limiter.Admit("alice"))

	// Only the single admitted timestamp is recorded.
	members, err := mr.ZMembers(redisKeyPrefix + "alice")
	assert.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRedisLimiterConcurrentAdmits(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 1, time.Minute)

	// The check-and-record step is a single script; concurrent attempts must
	// never admit more than the limit.
	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Admit("alice") {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, admitted)
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	limiter, mr := newTestRedisLimiter(t, 1, time.Minute)
	mr.Close()

	// Losing the rate-limit check must not drop user messages.
	assert.True(t, limiter.Admit("alice"))
}
