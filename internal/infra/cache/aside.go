package cache

import (
	"context"
	"time"
)

// GetOrLoad returns the value cached under key, falling back to load on a
// miss and caching the loaded value. Backend and decode errors fall through
// to the loader so a corrupt entry or a flapping redis never blocks reads.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if err := c.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}
