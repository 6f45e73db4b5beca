package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper records published message ids in Redis so retried publishes
// are delivered to a room at most once per key, across all instances.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added, false when an earlier publish already used it.
func (r *RedisDeduper) Add(ctx context.Context, room, key string) (bool, error) {
	return r.client.SetNX(ctx, "msg:"+room+":"+key, 1, r.ttl).Result()
}
