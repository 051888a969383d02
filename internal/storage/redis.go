package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore keeps every value for ttl after its last write.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(sessionID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := r.client.Del(ctx, redisKey(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func redisKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}
