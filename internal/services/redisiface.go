package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of redis the cache needs: opaque payloads by key
// plus small membership sets used as secondary indexes.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// IndexAdd adds member to the set at key and resets the set's TTL in one
	// MULTI/EXEC round trip.
	IndexAdd(ctx context.Context, key, member string, ttl time.Duration) error
	IndexRemove(ctx context.Context, key, member string) error
	IndexMembers(ctx context.Context, key string) ([]string, error)
}

// RedisAdapter implements RedisClient on top of go-redis.
type RedisAdapter struct {
	client redis.Cmdable
}

func NewRedisAdapter(client redis.Cmdable) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// Get returns redis.Nil when key is absent.
func (r *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	return r.client.Get(ctx, key).Bytes()
}

func (r *RedisAdapter) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, payload, ttl).Err()
}

func (r *RedisAdapter) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisAdapter) IndexAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, member)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (r *RedisAdapter) IndexRemove(ctx context.Context, key, member string) error {
	return r.client.SRem(ctx, key, member).Err()
}

func (r *RedisAdapter) IndexMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}
