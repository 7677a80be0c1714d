package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tenderbot/internal/types"
)

const platformsKey = "tenderguru:platforms"

// ErrCacheMiss is returned when the platform directory is not cached.
var ErrCacheMiss = errors.New("cache miss")

// RedisCache caches the TenderGuru platform directory so the bot does not
// re-fetch it on every link lookup.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
	mu     sync.RWMutex
}

func NewRedisCache(addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
		ttl:    ttl,
	}, nil
}

// GetPlatforms returns the cached directory or ErrCacheMiss.
func (c *RedisCache) GetPlatforms() ([]types.Platform, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := c.client.Get(c.ctx, platformsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var platforms []types.Platform
	if err := json.Unmarshal([]byte(data), &platforms); err != nil {
		return nil, err
	}
	return platforms, nil
}

// SetPlatforms stores the directory with the configured TTL.
func (c *RedisCache) SetPlatforms(platforms []types.Platform) error {
	if len(platforms) == 0 {
		return nil
	}
	data, err := json.Marshal(platforms)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.Set(c.ctx, platformsKey, string(data), c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
