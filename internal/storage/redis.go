package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFieldTTL is how long a mirrored field value is kept.
const DefaultFieldTTL = 24 * time.Hour

const fieldKeyPrefix = "csvsubmit:field:"

// RedisCmds is the subset of redis.Cmdable FieldCache uses.
type RedisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// FieldCache mirrors each widget's hidden field value so a page reload can
// restore it after the widget itself was swept.
type FieldCache struct {
	rdb RedisCmds
	ttl time.Duration
}

// NewFieldCache wraps rdb. A non-positive ttl uses DefaultFieldTTL.
func NewFieldCache(rdb RedisCmds, ttl time.Duration) *FieldCache {
	if ttl <= 0 {
		ttl = DefaultFieldTTL
	}
	return &FieldCache{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func fieldKey(widgetID string) string { return fieldKeyPrefix + widgetID }

// Put stores value for widgetID, refreshing the TTL.
func (c *FieldCache) Put(ctx context.Context, widgetID, value string) error {
	ctx, span := tracer.Start(ctx, "redis.put_field",
		trace.WithAttributes(
			attribute.String("widget_id", widgetID),
			attribute.Int("value_bytes", len(value)),
		),
	)
	defer span.End()

	if err := c.rdb.Set(ctx, fieldKey(widgetID), value, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache field %s: %w", widgetID, err)
	}
	return nil
}

// Get returns the cached value. ok is false on a cache miss.
func (c *FieldCache) Get(ctx context.Context, widgetID string) (value string, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "redis.get_field",
		trace.WithAttributes(attribute.String("widget_id", widgetID)),
	)
	defer span.End()

	value, err = c.rdb.Get(ctx, fieldKey(widgetID)).Result()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.String("cache_status", "miss"))
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("read cached field %s: %w", widgetID, err)
	}

	span.SetAttributes(attribute.String("cache_status", "hit"))
	return value, true, nil
}

// Delete drops the cached value.
func (c *FieldCache) Delete(ctx context.Context, widgetID string) error {
	ctx, span := tracer.Start(ctx, "redis.delete_field",
		trace.WithAttributes(attribute.String("widget_id", widgetID)),
	)
	defer span.End()

	if err := c.rdb.Del(ctx, fieldKey(widgetID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete cached field %s: %w", widgetID, err)
	}
	return nil
}
