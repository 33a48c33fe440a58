package notification

import (
	"context"

	"notifier/pkg/circuitbreaker"
)

// CircuitBreakerSeenCache wraps a SeenCache with a circuit breaker so a
// struggling Redis does not slow every record down to its timeout. When
// the breaker is open the wrapped errors surface immediately and the
// service applies its configured cache-error fallback.
type CircuitBreakerSeenCache struct {
	cache SeenCache
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerSeenCache(cache SeenCache, cb *circuitbreaker.Wrapper) *CircuitBreakerSeenCache {
	return &CircuitBreakerSeenCache{cache: cache, cb: cb}
}

func (c *CircuitBreakerSeenCache) Seen(ctx context.Context, eventID string) (bool, error) {
	result, err := c.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return c.cache.Seen(ctx, eventID)
	})
	c.cb.RecordRequest(err == nil)
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (c *CircuitBreakerSeenCache) MarkSeen(ctx context.Context, eventID string) error {
	_, err := c.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, c.cache.MarkSeen(ctx, eventID)
	})
	c.cb.RecordRequest(err == nil)
	return err
}
