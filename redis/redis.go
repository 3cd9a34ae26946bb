// Package redis stores submitted probe results in a Redis list.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the list holding the result documents.
const DefaultKey = "patchy:results"

// Client wraps the Redis client.
type Client struct {
	rdb *redis.Client
	key string
}

// NewClient creates a new Redis client for the given address. No connection
// is made until the first command.
func NewClient(addr string) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, // e.g., "localhost:6379"
	})
	return &Client{rdb: rdb, key: DefaultKey}
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
