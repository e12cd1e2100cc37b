package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ks:     NewKeyspace(prefix),
		ttl:    ttl,
	}
}

// RedisStore keeps the documents in redis so several gateway replicas can share one
// signed-in session. A zero ttl means the keys never expire.
type RedisStore struct {
	client *redis.Client
	ks     Keyspace
	ttl    time.Duration
}

func (r RedisStore) Get(ctx context.Context, key string, dst any) error {
	k, err := r.ks.Key(key)
	if err != nil {
		return err
	}

	data, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	if err2 := json.Unmarshal(data, dst); err2 != nil {
		return fmt.Errorf("unmarshal %s failed: %w", k, err2)
	}
	return nil
}

func (r RedisStore) Set(ctx context.Context, key string, value any) error {
	k, err := r.ks.Key(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", k, err)
	}

	if err := r.client.Set(ctx, k, string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisStore) Delete(ctx context.Context, keys ...string) error {
	ks, err := r.ks.keys(keys)
	if err != nil {
		return err
	}
	if len(ks) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, ks...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisStore) Close() error {
	return r.client.Close()
}
