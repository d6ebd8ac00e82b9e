package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/message"

	"github.com/go-redis/redis/v8"
)

// PredictionKeyPrefix prefixes the per-device prediction key
const PredictionKeyPrefix = "prediction:"

type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore keeps predictions in Redis so they survive server restarts
// and can be read by other services
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return newRedisStore(client, time.Duration(cfg.TTLHours)*time.Hour), nil
}

func newRedisStore(client redisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the Redis key for deviceID
func Key(deviceID string) string {
	return PredictionKeyPrefix + deviceID
}

// Save stores p as JSON under prediction:{deviceID}
func (s *RedisStore) Save(ctx context.Context, deviceID string, p message.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}
	if err := s.client.Set(ctx, Key(deviceID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store prediction for %s: %w", deviceID, err)
	}
	return nil
}

// Latest loads the stored prediction or returns ErrNotFound
func (s *RedisStore) Latest(ctx context.Context, deviceID string) (message.Prediction, error) {
	data, err := s.client.Get(ctx, Key(deviceID)).Bytes()
	if err == redis.Nil {
		return message.Prediction{}, ErrNotFound
	}
	if err != nil {
		return message.Prediction{}, fmt.Errorf("failed to load prediction for %s: %w", deviceID, err)
	}

	var p message.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return message.Prediction{}, fmt.Errorf("corrupt prediction for %s: %w", deviceID, err)
	}
	return p, nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
