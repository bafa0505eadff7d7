// Package redis builds the shared go-redis client from service config.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"provenance/internal/platform/config"
)

// Client wraps go-redis with the health probe the readiness endpoint wants.
// The run checkpoint cache builds on it; durable state lives in Postgres.
type Client struct {
	*redis.Client
}

// New connects using cfg and verifies the connection with a ping. An empty
// URL returns (nil, nil): Redis is optional, and callers treat nil as "no
// checkpoint cache".
func New(cfg config.RedisConfig) (*Client, error) {
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
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether Redis still answers pings.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
