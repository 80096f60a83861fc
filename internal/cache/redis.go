package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV backs the durable tier with Redis. Used when REDIS_ADDR is set;
// the SQLite api_cache table is the default.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects a Redis-backed durable tier.
func NewRedisKV(addr string) *RedisKV {
	return &RedisKV{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "api_cache:",
	}
}

// Get implements KV.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, ErrMiss
	}
	return doc, nil
}

// Set implements KV. Redis handles expiry natively.
func (r *RedisKV) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, doc, ttl).Err()
}

// Close releases the underlying connection pool.
func (r *RedisKV) Close() error { return r.client.Close() }
