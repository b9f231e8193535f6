package dedup

import (
	"context"
	"fmt"
	"time"

	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses redelivered inbound messages. Chat transports retry
// webhook deliveries, so the same external message id can arrive twice.
type Deduper interface {
	// Seen records the id and reports whether it was already recorded
	Seen(ctx context.Context, externalMessageID int64) bool
}

// New returns a Redis-backed deduper when an address is configured,
// otherwise a no-op.
func New(cfg *config.Config, log *logger.Logger) Deduper {
	if cfg.Redis.Addr == "" {
		return Noop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &RedisDeduper{
		client: client,
		ttl:    cfg.Redis.DedupTTL,
		log:    log.WithComponent("dedup"),
	}
}

// RedisDeduper tracks seen ids with SETNX and a TTL
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// Seen implements Deduper. Redis errors fail open: a missed duplicate only
// costs one extra generation, while dropping a fresh message loses it.
func (d *RedisDeduper) Seen(ctx context.Context, externalMessageID int64) bool {
	key := fmt.Sprintf("dedup:msg:%d", externalMessageID)
	fresh, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.log.LogError(err, "Dedup check failed", "key", key)
		return false
	}
	if !fresh {
		metrics.DuplicateMessages.Inc()
	}
	return !fresh
}

// Ping probes the Redis connection
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Noop never reports a duplicate
type Noop struct{}

// Seen implements Deduper
func (Noop) Seen(context.Context, int64) bool { return false }
