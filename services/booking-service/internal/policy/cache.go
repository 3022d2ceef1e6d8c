package policy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// KV is the subset of redis.Cmdable used by the cache.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore serves event types and hosts from Redis, shared by every
// instance, and falls back to next on a miss or a Redis error. Entries
// expire after ttl; settings writes call Invalidate.
type CachedStore struct {
	next   Store
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(next Store, kv KV, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{next: next, kv: kv, ttl: ttl, logger: logger}
}

func (c *CachedStore) EventType(ctx context.Context, id string) (model.EventType, error) {
	return cached(ctx, c, "policy:et:"+id, func() (model.EventType, error) {
		return c.next.EventType(ctx, id)
	})
}

func (c *CachedStore) Host(ctx context.Context, id string) (model.Host, error) {
	return cached(ctx, c, "policy:host:"+id, func() (model.Host, error) {
		return c.next.Host(ctx, id)
	})
}

func (c *CachedStore) InvalidateEventType(ctx context.Context, id string) {
	c.invalidate(ctx, "policy:et:"+id)
}

func (c *CachedStore) InvalidateHost(ctx context.Context, id string) {
	c.invalidate(ctx, "policy:host:"+id)
}

func (c *CachedStore) invalidate(ctx context.Context, key string) {
	if err := c.kv.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("policy cache invalidate failed", "key", key, "err", err)
	}
}

func cached[T any](ctx context.Context, c *CachedStore, key string, load func() (T, error)) (T, error) {
	raw, err := c.kv.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("policy cache read failed", "key", key, "err", err)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if body, err := json.Marshal(v); err == nil {
		if err := c.kv.Set(ctx, key, body, c.ttl).Err(); err != nil {
			c.logger.Warn("policy cache write failed", "key", key, "err", err)
		}
	}
	return v, nil
}
