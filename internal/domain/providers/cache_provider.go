package providers

import (
	"context"
)

// CacheProvider defines the interface for caching operations.
// Get returns a nil slice and no error on a miss.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
}
