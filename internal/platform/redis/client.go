// Package redis wraps the go-redis client with health checking.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"listscreen/internal/platform/config"
)

// Client wraps the go-redis client.
type Client struct {
	*redis.Client
}

// New creates a Redis client from configuration and verifies connectivity.
// Returns (nil, nil) when the URL is empty, meaning Redis is not configured.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection is usable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
