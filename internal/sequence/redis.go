package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counters outlive their day so late requests near midnight still see them.
const redisKeyTTL = 48 * time.Hour

type RedisSequencer struct {
	client *redis.Client
}

func NewRedisSequencer(addr, password string, db int) *RedisSequencer {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSequencer{client: rdb}
}

func (s *RedisSequencer) Next(ctx context.Context, name string, day time.Time) (int64, error) {
	key := fmt.Sprintf("seq:%s:%s", name, dayKey(day))

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, redisKeyTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", name, err)
	}
	return incr.Val(), nil
}

func (s *RedisSequencer) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSequencer) Close() error {
	return s.client.Close()
}
