// Package redis stores credential keys in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/kozaktomas/face-enroll/internal/database"
	"github.com/redis/go-redis/v9"
)

// Store implements database.KV on a Redis client.
type Store struct {
	client *redis.Client
}

// New creates a store with the given client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Connect parses a redis:// URL and waits until the server answers PING.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	err = database.PingWithRetry(ctx, database.BackendRedis, cfg.ConnectTimeout, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func init() {
	database.RegisterBackend(database.BackendRedis, func(ctx context.Context, cfg *config.DatabaseConfig) (database.KV, error) {
		return Connect(ctx, cfg)
	})
}
