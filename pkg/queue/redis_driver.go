package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list that holds pending jobs.
const DefaultRedisKey = "djqs:queue:jobs"

// RedisDriver is a durable queue driver backed by a Redis list
// (LPUSH to enqueue, BRPOP to dequeue).
type RedisDriver struct {
	rdb     redis.UniversalClient
	key     string
	timeout time.Duration
}

// NewRedisDriver creates a Redis-backed driver on key. Pass the same client
// used by the results backend if there is one.
func NewRedisDriver(rdb redis.UniversalClient, key string) *RedisDriver {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisDriver{rdb: rdb, key: key, timeout: 5 * time.Second}
}

// Push adds a job payload to the queue (LPUSH).
func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop blocks until a job is available (BRPOP with a 5s timeout).
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.timeout, d.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // timeout, no jobs ready
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}
