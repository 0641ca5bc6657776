// Package cache holds read-side responses. Projections invalidate entries
// after the index has been updated; the query side reads through it.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Invalidator drops a key, or every key matching a glob pattern.
type Invalidator interface {
	Invalidate(ctx context.Context, keyOrPattern string) error
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Cache interface {
	Invalidator
	Store
}

// Key builders shared by the projections and the query side.
func OrderKey(id string) string              { return "orders:" + id }
func ProductKey(id string) string            { return "products:" + id }
func CustomerKey(id string) string           { return "customers:" + id }
func CustomerOrdersPattern(id string) string { return "customers:" + id + ":orders*" }

const ProductListPattern = "products:list*"

const scanBatch = 100

type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", key)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Wrapf(r.client.Set(ctx, key, value, ttl).Err(), "set %s", key)
}

// Invalidate deletes a single key directly and walks patterns with SCAN,
// never KEYS.
func (r *Redis) Invalidate(ctx context.Context, keyOrPattern string) error {
	if !strings.ContainsAny(keyOrPattern, "*?[") {
		if err := r.client.Del(ctx, keyOrPattern).Err(); err != nil {
			return errors.Wrapf(err, "del %s", keyOrPattern)
		}
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyOrPattern, scanBatch).Result()
		if err != nil {
			return errors.Wrapf(err, "scan %s", keyOrPattern)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrapf(err, "del %d keys for %s", len(keys), keyOrPattern)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
