package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores entries as plain Redis strings under "<prefix>:<key>".
type RedisKV struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisKV returns a RedisKV. A zero ttl stores entries without expiry; the
// credential's own exp still bounds the session.
func NewRedisKV(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisKV {
	if prefix == "" {
		prefix = "gs"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisKV{redis: client, prefix: prefix, ttl: ttl}
}

func (r *RedisKV) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.redis.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, values map[string]string) error {
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, r.key(k), v, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.redis.Del(ctx, full...).Err()
}
