package backend

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/food-checkout/internal/coupon"
)

const (
	settingsCacheKey   = "backend:delivery-settings"
	couponsCacheKey    = "backend:coupons"
	restaurantCacheKey = "backend:restaurant:"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client or non-positive ttl
// disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Source is the uncached read side of the backend.
type Source interface {
	GetDeliverySettings(ctx context.Context) (DeliverySettings, error)
	ListCoupons(ctx context.Context) ([]coupon.Coupon, error)
	GetRestaurant(ctx context.Context, id string) (Restaurant, error)
}

// CachedReader serves backend reads from Redis when possible. Cache failures
// are logged and fall through to the source.
type CachedReader struct {
	Source Source
	Cache  *Cache
	Logger zerolog.Logger
}

// GetDeliverySettings returns cached or fresh delivery settings.
func (r *CachedReader) GetDeliverySettings(ctx context.Context) (DeliverySettings, error) {
	return cached(ctx, r, settingsCacheKey, r.Source.GetDeliverySettings)
}

// ListCoupons returns cached or fresh coupons.
func (r *CachedReader) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	return cached(ctx, r, couponsCacheKey, r.Source.ListCoupons)
}

// GetRestaurant returns a cached or fresh restaurant.
func (r *CachedReader) GetRestaurant(ctx context.Context, id string) (Restaurant, error) {
	return cached(ctx, r, restaurantCacheKey+id, func(ctx context.Context) (Restaurant, error) {
		return r.Source.GetRestaurant(ctx, id)
	})
}

func cached[T any](ctx context.Context, r *CachedReader, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	hit, err := r.Cache.GetJSON(ctx, key, &out)
	if err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("backend cache read failed")
	}
	if hit {
		return out, nil
	}
	out, err = load(ctx)
	if err != nil {
		return out, err
	}
	if err := r.Cache.SetJSON(ctx, key, out); err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("backend cache write failed")
	}
	return out, nil
}
