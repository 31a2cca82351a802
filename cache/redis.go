package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// Compile-time check to ensure Redis implements SearchCache
var _ interfaces.SearchCache = (*Redis)(nil)

// Redis stores search hits as JSON with a TTL. Failures are logged and reported as misses.
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedis connects to addr and pings it once
func NewRedis(addr string, ttl time.Duration) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisWithClient(rdb, ttl), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(rdb *goredis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Get returns the cached hits for key. Redis errors and undecodable values count as misses.
func (r *Redis) Get(ctx context.Context, key string) ([]interfaces.SearchHit, bool) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		metrics.SearchCacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.SearchCacheRequests.WithLabelValues("error").Inc()
		logging.Warn("Search cache read failed", "key", key, "error", err)
		return nil, false
	}

	var hits []interfaces.SearchHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		metrics.SearchCacheRequests.WithLabelValues("error").Inc()
		logging.Warn("Search cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}

	metrics.SearchCacheRequests.WithLabelValues("hit").Inc()
	return hits, true
}

// Set stores hits under key with the configured TTL; failures are only logged
func (r *Redis) Set(ctx context.Context, key string, hits []interfaces.SearchHit) {
	raw, err := json.Marshal(hits)
	if err != nil {
		logging.Warn("Failed to encode search hits", "key", key, "error", err)
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		logging.Warn("Search cache write failed", "key", key, "error", err)
	}
}

// Ping reports whether the server answers
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *Redis) Close() error {
	return r.rdb.Close()
}
