package correlation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix = "corr:entry:"
	redisIndexKey  = "corr:index"
)

// RedisStore is a Store backed by Redis. Entries survive process restarts,
// unlike the default in-memory backend, without touching dispatch or
// resolution logic.
//
// Each entry is a JSON value under corr:entry:<key>; a list under corr:index
// preserves insertion order for FirstKey. Index entries whose value has been
// deleted out-of-band are pruned lazily during FirstKey.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a Store on top of an established Redis connection.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Put stores an entry under its key.
func (s *RedisStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode correlation entry: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+entry.Key, data, 0)
	pipe.LRem(ctx, redisIndexKey, 0, entry.Key)
	pipe.RPush(ctx, redisIndexKey, entry.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store correlation entry: %w", err)
	}
	return nil
}

// Get returns the entry for key, if live.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read correlation entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode correlation entry: %w", err)
	}
	return entry, true, nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+key)
	pipe.LRem(ctx, redisIndexKey, 0, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete correlation entry: %w", err)
	}
	return nil
}

// FirstKey returns the oldest live key, pruning index entries whose value no
// longer exists.
func (s *RedisStore) FirstKey(ctx context.Context) (string, bool, error) {
	keys, err := s.rdb.LRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to read correlation index: %w", err)
	}

	for _, key := range keys {
		exists, err := s.rdb.Exists(ctx, redisKeyPrefix+key).Result()
		if err != nil {
			return "", false, fmt.Errorf("failed to check correlation entry: %w", err)
		}
		if exists > 0 {
			return key, true, nil
		}
		// stale index entry
		s.rdb.LRem(ctx, redisIndexKey, 0, key)
	}
	return "", false, nil
}

var _ Store = (*RedisStore)(nil)
