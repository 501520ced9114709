package dedup

import (
	"context"
	"fmt"
	"time"

	"crm-service/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient creates a Redis client, or nil when no address is configured.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Deduper claims keys in Redis with SETNX so concurrent workers process a key once.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDeduper creates a deduper. A nil logger disables logging.
func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Key builds the Redis key for a scope and id
func Key(scope, id string) string {
	return fmt.Sprintf("dedup:%s:%s", scope, id)
}

// AcquireOnce returns true if this is the first claim of scope+id within the TTL.
// When Redis is unavailable it fails open and returns true.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, id string) bool {
	if d == nil || d.rdb == nil {
		return true
	}

	key := Key(scope, id)
	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated claim",
			zap.String("scope", scope),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release drops a claim so a later scan can retry the key
func (d *Deduper) Release(ctx context.Context, scope, id string) {
	if d == nil || d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, Key(scope, id)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup claim", zap.String("scope", scope), zap.String("id", id), zap.Error(err))
	}
}
