// Package cache provides a small byte cache used to memoize rendered
// graph artifacts between CLI invocations.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys with optional expiry.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// ArtifactKey builds the cache key for a rendered artifact. The key covers
// the DOT source and every option that changes the output bytes.
func ArtifactKey(dot []byte, format string, scale float64) string {
	return hashKey("artifact", Hash(dot), format, scale)
}
