package airquality

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/engine"
	"github.com/breathescope/breathescope/pkg/score"
)

// Cache is a read-through Redis cache in front of an air-quality
// provider. Cache failures are logged and fall through to the inner
// provider; a broken cache never makes exposure data unavailable.
type Cache struct {
	inner engine.AirQualityProvider
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCache wraps the provider with a Redis cache using the given TTL.
func NewCache(inner engine.AirQualityProvider, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (c *Cache) Current(ctx context.Context, lat, lon float64) (*score.ExposureSample, error) {
	key := currentKey(lat, lon)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var sample score.ExposureSample
		if err := json.Unmarshal(raw, &sample); err == nil {
			return &sample, nil
		}
		c.log.Warn().Str("key", key).Msg("dropping undecodable cached exposure sample")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("exposure cache read failed")
	}

	sample, err := c.inner.Current(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, sample)
	return sample, nil
}

func (c *Cache) Historical(ctx context.Context, lat, lon float64, hours int) ([]score.ExposureSample, error) {
	key := historicalKey(lat, lon, hours)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var samples []score.ExposureSample
		if err := json.Unmarshal(raw, &samples); err == nil {
			return samples, nil
		}
		c.log.Warn().Str("key", key).Msg("dropping undecodable cached exposure history")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("exposure cache read failed")
	}

	samples, err := c.inner.Historical(ctx, lat, lon, hours)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, samples)
	return samples, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to encode exposure data for cache")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("exposure cache write failed")
	}
}

// Positions are rounded to ~100m so nearby lookups share cache entries.
func currentKey(lat, lon float64) string {
	return fmt.Sprintf("aq:current:%.3f:%.3f", lat, lon)
}

func historicalKey(lat, lon float64, hours int) string {
	return fmt.Sprintf("aq:history:%.3f:%.3f:%dh", lat, lon, hours)
}
