package redis

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
)

// Client wraps the go-redis client so quota counters and session locks can
// share one connection pool.
type Client struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{cli: c}, nil
}

// NewClientFromAddr connects without config, for tests against miniredis.
func NewClientFromAddr(ctx context.Context, addr string) (*Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{cli: c}, nil
}

func (c *Client) Close() error { return c.cli.Close() }
