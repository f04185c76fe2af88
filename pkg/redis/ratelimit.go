package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter counts attempts in fixed windows.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// FixedWindowAllow counts one attempt for scope and reports whether the count
// is still within limit. The window starts at the first attempt; ExpireNX also
// repairs a counter whose first expire was lost.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if err := c.ready(); err != nil {
		return false, 0, err
	}
	k := key("rate_limit", scope)
	count, err := c.cmd.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", k, err)
	}
	if window > 0 {
		if err := c.cmd.ExpireNX(ctx, k, window).Err(); err != nil {
			return false, count, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	return count <= limit, count, nil
}
