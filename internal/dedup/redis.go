// internal/dedup/redis.go
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prestamos/internal/inbox"
)

// RedisCooldown keeps one expiring key per (user, type).
type RedisCooldown struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCooldown(rdb *redis.Client) *RedisCooldown {
	return &RedisCooldown{rdb: rdb, prefix: "prestamos:cooldown"}
}

func (c *RedisCooldown) key(userID string, t inbox.Type) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, userID, t)
}

func (c *RedisCooldown) Active(ctx context.Context, userID string, t inbox.Type) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(userID, t)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCooldown) Mark(ctx context.Context, userID string, t inbox.Type, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(userID, t), "1", ttl).Err()
}
