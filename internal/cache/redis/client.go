// Package redis implements the engine host's coordination layer on
// go-redis/v9: per-market locks, the event bus, the market snapshot cache,
// the randomness feed and API rate limiting.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultNamespace = "marketengine"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// Namespace prefixes every key this package writes. Empty means
	// "marketengine".
	Namespace string
}

func (cfg ClientConfig) options() *redis.Options {
	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	o := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		ClientName: ns,
	}
	if cfg.TLSEnabled {
		o.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return o
}

// Client is a go-redis client plus the key namespace shared by every
// structure in this package.
type Client struct {
	rdb *redis.Client
	ns  string
}

// New connects and pings once; an unreachable server is an error.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := cfg.options()
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, ns: opts.ClientName}, nil
}

// Ping implements the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// key builds "<namespace>:<part>:<part>...".
func (c *Client) key(parts ...string) string {
	return c.ns + ":" + strings.Join(parts, ":")
}
