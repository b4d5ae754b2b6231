package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cache persists resolved boxes by normalised query.
type Cache interface {
	// GetBBox returns nil with no error on a miss or an entry older than maxAge.
	// A maxAge of zero accepts any age.
	GetBBox(ctx context.Context, key string, maxAge time.Duration) (*BBox, error)
	PutBBox(ctx context.Context, key string, box BBox) error
}

// Cached wraps a Resolver with a Cache. Cache failures are logged and never
// fail a lookup. Misses are not cached.
type Cached struct {
	Resolver Resolver
	Cache    Cache
	TTL      time.Duration
}

// Resolve implements Resolver.
func (c *Cached) Resolve(ctx context.Context, query string) (*BBox, error) {
	key := NormalizeQuery(query)
	if c.Cache != nil && key != "" {
		box, err := c.Cache.GetBBox(ctx, key, c.TTL)
		switch {
		case err != nil:
			zap.L().Warn("geocode: cache lookup failed", zap.String("query", key), zap.Error(err))
		case box != nil:
			zap.L().Debug("geocode: cache hit", zap.String("query", key))
			return box, nil
		}
	}

	box, err := c.Resolver.Resolve(ctx, query)
	if err != nil || box == nil {
		return box, err
	}

	if c.Cache != nil && key != "" {
		if err := c.Cache.PutBBox(ctx, key, *box); err != nil {
			zap.L().Warn("geocode: cache store failed", zap.String("query", key), zap.Error(err))
		}
	}
	return box, nil
}
