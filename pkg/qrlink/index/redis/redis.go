// Package redis stores the content key index in Redis with a TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/qrlink/pkg/qrlink"
)

const keyPrefix = "qrlink:key:"

// Config holds the Redis connection settings.
type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // zero keeps entries forever
}

// Index is a Redis-backed qrlink.Index.
type Index struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Index, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Index {
	return &Index{client: client, ttl: ttl}
}

func cacheKey(contentKey string) string {
	return keyPrefix + contentKey
}

func (i *Index) Put(ctx context.Context, contentKey string, object qrlink.StorageObject) error {
	payload, err := json.Marshal(object)
	if err != nil {
		return fmt.Errorf("encode index entry: %w", err)
	}
	if err := i.client.Set(ctx, cacheKey(contentKey), payload, i.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (i *Index) Get(ctx context.Context, contentKey string) (*qrlink.StorageObject, error) {
	payload, err := i.client.Get(ctx, cacheKey(contentKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, qrlink.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var object qrlink.StorageObject
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, fmt.Errorf("decode index entry: %w", err)
	}
	return &object, nil
}

// Close releases the client.
func (i *Index) Close() error {
	return i.client.Close()
}
