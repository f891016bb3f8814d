package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache implementa Cache sobre Redis (nodo, sentinel o cluster); los
// valores se guardan en JSON bajo un namespace opcional.
type RedisCache struct {
	client    redis.UniversalClient
	ttl       time.Duration
	namespace string
}

var _ Cache = (*RedisCache)(nil)

// RedisOption configura un RedisCache.
type RedisOption func(*RedisCache)

// WithNamespace antepone "ns:" a todas las claves.
func WithNamespace(ns string) RedisOption {
	return func(c *RedisCache) { c.namespace = ns }
}

// NewRedisCache crea la caché. ttl es el TTL usado cuando Set recibe ttlSecs <= 0.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil // cache miss
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if ttlSecs > 0 {
		ttl = time.Duration(ttlSecs) * time.Second
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Ping comprueba la conexión.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
