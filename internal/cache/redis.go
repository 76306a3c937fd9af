package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"device-geocoder/internal/geo"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisPrefix = "geocoder:resolution:"

// Redis shares resolutions between runs and processes. Errors are logged and reported as
// misses so a Redis outage only costs scoring time.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps client. ttl of zero stores entries without expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// OpenRedis returns nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (c *Redis) Get(ctx context.Context, key string) (geo.Resolution, bool) {
	raw, err := c.client.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		return geo.Resolution{}, false
	}
	var res geo.Resolution
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache entry corrupt")
		return geo.Resolution{}, false
	}
	return res, true
}

func (c *Redis) Set(ctx context.Context, key string, res geo.Resolution) {
	raw, err := json.Marshal(res)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache encode failed")
		return
	}
	if err := c.client.Set(ctx, redisPrefix+key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}
