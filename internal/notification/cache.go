package notification

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"notifier/internal/constants"
	pkgerrors "notifier/pkg/errors"
)

// SeenCache is a fast-path duplicate check in front of the database. It
// is advisory only: a miss means "probably new", never "definitely new".
// MarkSeen is called after the notification is durably stored, so a
// crash between insert and mark leaves the cache stale in the safe
// direction.
type SeenCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

type RedisSeenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSeenCache(client *redis.Client, ttl time.Duration) *RedisSeenCache {
	return &RedisSeenCache{client: client, ttl: ttl}
}

func (c *RedisSeenCache) Seen(ctx context.Context, eventID string) (bool, error) {
	count, err := c.client.Exists(ctx, seenKey(eventID)).Result()
	if err != nil {
		return false, pkgerrors.ErrServiceUnavailable.WithCause(err).WithDetail("message", "seen-cache lookup failed")
	}
	return count > 0, nil
}

func (c *RedisSeenCache) MarkSeen(ctx context.Context, eventID string) error {
	if err := c.client.Set(ctx, seenKey(eventID), "1", c.ttl).Err(); err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err).WithDetail("message", "seen-cache write failed")
	}
	return nil
}

func seenKey(eventID string) string {
	return constants.CacheKeyPrefixSeen + eventID
}

// NoopSeenCache reports nothing as seen, pushing every duplicate check
// onto the database constraint. Used when Redis is not configured.
type NoopSeenCache struct{}

func (NoopSeenCache) Seen(ctx context.Context, eventID string) (bool, error) { return false, nil }

func (NoopSeenCache) MarkSeen(ctx context.Context, eventID string) error { return nil }
