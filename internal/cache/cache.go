// Package cache keeps the latest raw reading per topic in Redis. It is an
// optional hot path next to the Postgres history; a nil *Cache disables it.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no reading is cached for the topic.
var ErrMiss = errors.New("no cached reading")

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

func key(topic string) string {
	return "sensor:last:" + topic
}

// Set overwrites the latest raw reading for topic. The TTL lets readings from
// dead topics age out.
func (c *Cache) Set(ctx context.Context, topic string, raw []byte) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, key(topic), raw, c.ttl).Err()
}

// Get returns the latest raw reading for topic, or ErrMiss.
func (c *Cache) Get(ctx context.Context, topic string) ([]byte, error) {
	if c == nil {
		return nil, ErrMiss
	}
	raw, err := c.rdb.Get(ctx, key(topic)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return raw, err
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
