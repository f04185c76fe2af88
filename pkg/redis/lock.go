package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockKey namespaces a distributed lock name.
func (c *Client) LockKey(name string) string {
	return key("lock", name)
}

// TryLock sets key to token for ttl unless another owner holds it.
func (c *Client) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.cmd.SetNX(ctx, key, token, ttl).Result()
}

// Unlock deletes key when token still owns it and reports whether it did.
func (c *Client) Unlock(ctx context.Context, key, token string) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	n, err := compareAndDelete.Run(ctx, c.cmd, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
