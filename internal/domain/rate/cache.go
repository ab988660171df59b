package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuoteCache stores computed breakdowns. Implementations must treat a miss as
// (nil, nil).
type QuoteCache interface {
	Get(ctx context.Context, key string) (*Breakdown, error)
	Set(ctx context.Context, key string, b Breakdown) error
}

// QuoteKey identifies a quote. version changes whenever the property's
// pricing changes, which invalidates older entries without a delete.
func QuoteKey(propertyID int64, version time.Time, checkIn, checkOut string, g Guests) string {
	return fmt.Sprintf("quote:%d:%d:%s:%s:%d:%d:%d",
		propertyID, version.UnixNano(), checkIn, checkOut, g.Male, g.Female, g.Children)
}

type RedisQuoteCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisQuoteCache(client redis.Cmdable, ttl time.Duration) *RedisQuoteCache {
	return &RedisQuoteCache{client: client, ttl: ttl}
}

func (c *RedisQuoteCache) Get(ctx context.Context, key string) (*Breakdown, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var b Breakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode cached quote: %w", err)
	}
	return &b, nil
}

func (c *RedisQuoteCache) Set(ctx context.Context, key string, b Breakdown) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
