// Package cache is the key/value store behind the query results backend.
//
// Three drivers exist: "memory" (process local), "redis" and "storage"
// (a pkg/storage disk, local or S3). Every driver counts hits and misses in
// the djqs_results_* Prometheus metrics.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/metrics"
	"github.com/datajunction/djqs/pkg/storage"
)

// Store is a byte-oriented key/value store. A ttl of zero means the value
// never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Open builds the store named by RESULTS_BACKEND.
func Open(ctx context.Context) (Store, error) {
	switch driver := config.ResultsBackend(); driver {
	case "redis":
		rdb, err := Connect(ctx)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb), nil
	case "storage":
		disk, err := storage.Open(ctx, config.StorageDefault())
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		return NewDiskStore(disk), nil
	default:
		return NewMemoryStore(), nil
	}
}

// Connect initialises a Redis client from configuration and verifies it with
// a ping.
func Connect(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       config.RedisDB(),
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return rdb, nil
}

func observe(driver string, hit bool) {
	if hit {
		metrics.CacheHits.WithLabelValues(driver).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(driver).Inc()
	}
}
