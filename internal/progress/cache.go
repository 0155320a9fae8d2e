package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKey is the Redis hash holding the last known position per podcast.
const CacheKey = "podcast-progress"

// Entry is the ephemeral position for one podcast.
type Entry struct {
	ProgressSeconds float64   `json:"progressSeconds"`
	Completed       bool      `json:"completed,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Cache is the fast, non-durable position store keyed by podcast id.
// A miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, podcastID string) (*Entry, error)
	Set(ctx context.Context, podcastID string, e Entry) error
	Delete(ctx context.Context, podcastID string) error
}

// RedisCache stores entries as JSON fields of a single hash.
type RedisCache struct {
	rc  *redis.Client
	key string
}

func NewRedisCache(rc *redis.Client) *RedisCache {
	return &RedisCache{rc: rc, key: CacheKey}
}

func (c *RedisCache) Get(ctx context.Context, podcastID string) (*Entry, error) {
	result, err := c.rc.HGet(ctx, c.key, podcastID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(result), &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &e, nil
}

func (c *RedisCache) Set(ctx context.Context, podcastID string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := c.rc.HSet(ctx, c.key, podcastID, b).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, podcastID string) error {
	if err := c.rc.HDel(ctx, c.key, podcastID).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// MemoryCache is a process-local Cache for development and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(_ context.Context, podcastID string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[podcastID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *MemoryCache) Set(_ context.Context, podcastID string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[podcastID] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, podcastID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, podcastID)
	return nil
}
