package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
)

// keyPrefix namespaces every cache entry so the Redis instance can be
// shared with other school services without key collisions.
const keyPrefix = "crs:"

const (
	scanPageSize = 200
	delBatchSize = 128
)

// CacheRepository provides helpers around Redis for cached catalog and
// dashboard payloads. Values are stored as JSON under a namespaced key.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided
// destination. A payload that no longer decodes is dropped and reported
// as a miss so the caller rebuilds it; old-schema entries would otherwise
// survive a deploy forever.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return fmt.Errorf("cache key %s: %w", key, appErrors.ErrCacheMiss)
	}

	namespaced := keyPrefix + key
	raw, err := r.client.Get(ctx, namespaced).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("cache key %s: %w", key, appErrors.ErrCacheMiss)
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		if delErr := r.client.Del(ctx, namespaced).Err(); delErr != nil {
			r.logger.Warn("evicting undecodable cache entry failed", zap.String("key", key), zap.Error(delErr))
		}
		return fmt.Errorf("cache key %s: stale payload: %w", key, appErrors.ErrCacheMiss)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern.
// Keys are deleted in batches rather than one round-trip per key.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	var batch []string
	iter := r.client.Scan(ctx, 0, keyPrefix+pattern, scanPageSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= delBatchSize {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete batch: %w", err)
		}
	}

	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
