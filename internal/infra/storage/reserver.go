package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reserver claims locators before an object store write, since object
// stores silently overwrite.
type Reserver interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type MemoryReserver struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryReserver() *MemoryReserver {
	return &MemoryReserver{keys: make(map[string]struct{})}
}

func (r *MemoryReserver) Reserve(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; ok {
		return false, nil
	}
	r.keys[key] = struct{}{}
	return true, nil
}

func (r *MemoryReserver) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
	return nil
}

// RedisReserver shares reservations between processes with SET NX.
type RedisReserver struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisReserver(addr, password string, db int, ttl time.Duration) (*RedisReserver, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisReserverFromClient(client, ttl), nil
}

func NewRedisReserverFromClient(client *redis.Client, ttl time.Duration) *RedisReserver {
	return &RedisReserver{client: client, prefix: "kredilakay:locator:", ttl: ttl}
}

func (r *RedisReserver) Reserve(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), r.ttl).Result()
}

func (r *RedisReserver) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisReserver) Close() error {
	return r.client.Close()
}
