package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the limiter with a shared redis counter so the window is
// enforced across gateway replicas.
type RedisStore struct {
	rdb *redis.Client
}

var _ CounterStore = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Incr pipelines INCR and TTL. The first increment of a window (or a counter
// left without expiry by an earlier failure) arms the key's expiry to the
// window length.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := incr.Val()
	ttl := ttlCmd.Val()
	if count == 1 || ttl < 0 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return count, ttl, nil
}
