package repository

import (
	"context"
	"time"
)

// PlayerCacheRepository remembers which video file a player page resolved to.
type PlayerCacheRepository interface {
	// Get returns the cached file name for a player page.
	Get(ctx context.Context, playerURI string) (string, bool, error)
	// Put caches the file name for a player page with a specific expiry time.
	Put(ctx context.Context, playerURI, fileName string, expiry time.Duration) error
}
