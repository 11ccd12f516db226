package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared-cache backend. Values are stored as JSON under a
// namespaced key; Redis owns expiry so eviction needs no local bookkeeping.
// All errors are treated as cache misses: a broken cache must degrade to a
// redundant upstream fetch, never fail the request.
type Redis[T any] struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis[T any](addr, password string, db int, prefix string) *Redis[T] {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Redis[T]{rdb: rdb, prefix: prefix}
}

func (r *Redis[T]) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	val, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if err != nil {
		return zero, false
	}
	var out T
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		log.Printf("[WARN] cache %s: corrupt entry for %s: %v", r.prefix, key, err)
		return zero, false
	}
	return out, true
}

func (r *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	b, err := json.Marshal(value)
	if err != nil {
		log.Printf("[WARN] cache %s: marshal %s: %v", r.prefix, key, err)
		return
	}
	if err := r.rdb.Set(ctx, r.prefix+key, string(b), ttl).Err(); err != nil {
		log.Printf("[WARN] cache %s: set %s: %v", r.prefix, key, err)
	}
}

func (r *Redis[T]) Delete(ctx context.Context, key string) {
	_ = r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *Redis[T]) Clear(ctx context.Context) {
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = r.rdb.Del(ctx, iter.Val()).Err()
	}
}
