package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/missoula-scraper/pkg/utils"
)

const playerKeyPrefix = "player:"

// PlayerCacheRepoImpl provides a concrete implementation for the PlayerCacheRepository interface using Redis.
// It maps a player page to the video file name it showed.
type PlayerCacheRepoImpl struct {
	client *redis.Client
}

// NewPlayerCacheRepo creates a new instance of PlayerCacheRepoImpl.
func NewPlayerCacheRepo(client *redis.Client) *PlayerCacheRepoImpl {
	return &PlayerCacheRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a player URL by hashing it.
func (r *PlayerCacheRepoImpl) generateKey(playerURI string) string {
	return fmt.Sprintf("%s%s", playerKeyPrefix, utils.HashURL(playerURI))
}

// Get returns the cached file name. A missing key is a miss, not an error.
func (r *PlayerCacheRepoImpl) Get(ctx context.Context, playerURI string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.generateKey(playerURI)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Put stores the file name with an expiry.
func (r *PlayerCacheRepoImpl) Put(ctx context.Context, playerURI, fileName string, expiry time.Duration) error {
	return r.client.SetEx(ctx, r.generateKey(playerURI), fileName, expiry).Err()
}

// Remove drops a cached entry.
func (r *PlayerCacheRepoImpl) Remove(ctx context.Context, playerURI string) error {
	return r.client.Del(ctx, r.generateKey(playerURI)).Err()
}
