package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore holds idempotency records keyed by caller scope.
type IdempotencyStore interface {
	IdempotencyKey(scope, id string) string
	Claim(ctx context.Context, key, marker string, ttl time.Duration) (bool, error)
	Load(ctx context.Context, key string) (string, bool, error)
	Store(ctx context.Context, key, record string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// IdempotencyKey namespaces an Idempotency-Key header value under scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

// Claim writes marker only when key is unused and reports whether it did.
func (c *Client) Claim(ctx context.Context, key, marker string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.cmd.SetNX(ctx, key, marker, ttl).Result()
}

// Load returns the record at key. A missing key is not an error.
func (c *Client) Load(ctx context.Context, key string) (string, bool, error) {
	if err := c.ready(); err != nil {
		return "", false, err
	}
	value, err := c.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Store overwrites the record at key, replacing any pending marker.
func (c *Client) Store(ctx context.Context, key, record string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, key, record, ttl).Err()
}

// Release drops key so the client may retry with the same header.
func (c *Client) Release(ctx context.Context, key string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Del(ctx, key).Err()
}
