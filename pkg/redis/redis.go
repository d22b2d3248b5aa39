package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Client wraps the redis client with additional functionality
type Client struct {
	client *redis.Client
}

// NewClient creates a new Redis client
func NewClient(cfg *config.Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := rdb.Ping(ctx)
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", result.Err())
	}

	logger.Info("Connected to Redis successfully")

	return &Client{
		client: rdb,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Publish publishes a message to a Redis channel
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	result := c.client.Publish(ctx, channel, data)
	if result.Err() != nil {
		return fmt.Errorf("failed to publish message: %w", result.Err())
	}

	return nil
}

// Subscribe subscribes to a Redis channel
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}

// Set sets a key-value pair with expiration
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	result := c.client.Set(ctx, key, data, expiration)
	if result.Err() != nil {
		return fmt.Errorf("failed to set key: %w", result.Err())
	}

	return nil
}

// ErrKeyNotFound reports a missing key from Get.
var ErrKeyNotFound = redis.Nil

// Get gets a value by key
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	result := c.client.Get(ctx, key)
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to get key: %w", result.Err())
	}

	data, err := result.Bytes()
	if err != nil {
		return fmt.Errorf("failed to get bytes: %w", err)
	}

	err = json.Unmarshal(data, dest)
	if err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	result := c.client.Del(ctx, keys...)
	if result.Err() != nil {
		return fmt.Errorf("failed to delete keys: %w", result.Err())
	}

	return nil
}

// Expire sets expiration for a key
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	result := c.client.Expire(ctx, key, expiration)
	if result.Err() != nil {
		return fmt.Errorf("failed to set expiration: %w", result.Err())
	}
	return nil
}

// SetNX sets a key only if it doesn't exist
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	result := c.client.SetNX(ctx, key, value, expiration)
	if result.Err() != nil {
		return false, fmt.Errorf("failed to set key if not exists: %w", result.Err())
	}
	return result.Val(), nil
}

// Keys returns all keys matching pattern, scanning incrementally
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// ScriptRun executes a server-side Lua script (EVALSHA with EVAL fallback).
func (c *Client) ScriptRun(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	result, err := script.Run(ctx, c.client, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}
	return result, nil
}

// XAdd appends an entry to a stream, trimming approximately at maxLen
func (c *Client) XAdd(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	result := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	})
	if result.Err() != nil {
		return "", fmt.Errorf("failed to append to stream: %w", result.Err())
	}
	return result.Val(), nil
}

// XRange reads stream entries between start and stop (inclusive)
func (c *Client) XRange(ctx context.Context, stream, start, stop string) ([]redis.XMessage, error) {
	result := c.client.XRange(ctx, stream, start, stop)
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to range stream: %w", result.Err())
	}
	return result.Val(), nil
}

// XGroupCreateMkStream creates a consumer group, creating the stream if absent.
// An already-existing group is not an error.
func (c *Client) XGroupCreateMkStream(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// XReadGroup reads new entries for a consumer in a group, blocking up to block
func (c *Client) XReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]redis.XStream, error) {
	result := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	})
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from group: %w", result.Err())
	}
	return result.Val(), nil
}

// XAck acknowledges processed entries for a consumer group
func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) error {
	result := c.client.XAck(ctx, stream, group, ids...)
	if result.Err() != nil {
		return fmt.Errorf("failed to ack stream entries: %w", result.Err())
	}
	return nil
}
