package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("cache miss")

// RedisClient wraps a go-redis client with a key namespace.
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(opts ...RedisOption) (*RedisClient, error) {
	cfg := &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 2,
		Prefix:       "polysentry",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisClient{client: client, prefix: cfg.Prefix}, nil
}

// Client returns the underlying redis client.
func (c *RedisClient) Client() *redis.Client { return c.client }

// Close closes the connection pool.
func (c *RedisClient) Close() error { return c.client.Close() }

// Ping checks connectivity.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetJSON marshals value and stores it under key.
func (c *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, c.wrap(key), data, ttl).Err()
}

// GetJSON loads key and unmarshals it into dest. Returns ErrMiss when absent.
func (c *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.wrap(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSONNX stores value only if key does not exist. Returns true when the
// write happened, false when the key was already present.
func (c *RedisClient) SetJSONNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.SetNX(ctx, c.wrap(key), data, ttl).Result()
}

// SAdd adds members to the set at key.
func (c *RedisClient) SAdd(ctx context.Context, key string, members ...string) error {
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return c.client.SAdd(ctx, c.wrap(key), vals...).Err()
}

// SRem removes members from the set at key.
func (c *RedisClient) SRem(ctx context.Context, key string, members ...string) error {
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return c.client.SRem(ctx, c.wrap(key), vals...).Err()
}

// SMembers returns all members of the set at key.
func (c *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.client.SMembers(ctx, c.wrap(key)).Result()
}

// Expire sets a TTL on key.
func (c *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, c.wrap(key), ttl).Err()
}

// Delete removes keys.
func (c *RedisClient) Delete(ctx context.Context, keys ...string) error {
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = c.wrap(k)
	}
	return c.client.Unlink(ctx, wrapped...).Err()
}

func (c *RedisClient) wrap(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}
