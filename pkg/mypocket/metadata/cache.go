package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores fetched metadata by URL. Get returns nil on a miss.
type Cache interface {
	Get(ctx context.Context, url string) (*PageMetadata, error)
	Set(ctx context.Context, url string, meta PageMetadata, ttl time.Duration) error
}

const keyPrefix = "metadata:"

// RedisCache keeps metadata in Redis so every server instance shares it
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache on top of client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// OpenRedis connects to the Redis server at rawURL and checks it answers
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, url string) (*PageMetadata, error) {
	val, err := c.client.Get(ctx, keyPrefix+url).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var meta PageMetadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, meta PageMetadata, ttl time.Duration) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+url, data, ttl).Err()
}

type memoryEntry struct {
	meta      PageMetadata
	expiresAt time.Time
}

// DefaultMemoryCacheSize bounds NewMemoryCache
const DefaultMemoryCacheSize = 10000

// MemoryCache is the in-process fallback used when Redis is not configured.
// It holds at most maxEntries URLs: a full cache first drops expired entries
// and then the entry closest to expiry.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates an empty in-process cache of DefaultMemoryCacheSize
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheSize(DefaultMemoryCacheSize)
}

// NewMemoryCacheSize creates an empty in-process cache holding at most
// maxEntries URLs
func NewMemoryCacheSize(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryCacheSize
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), maxEntries: maxEntries, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, url string) (*PageMetadata, error) {
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check, a concurrent Set may have refreshed the entry
		if current, ok := c.entries[url]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, url)
		}
		c.mu.Unlock()
		return nil, nil
	}

	meta := entry.meta
	return &meta, nil
}

func (c *MemoryCache) Set(_ context.Context, url string, meta PageMetadata, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.entries[url]; !ok && len(c.entries) >= c.maxEntries {
		c.sweep(now)
		if len(c.entries) >= c.maxEntries {
			c.evictSoonest()
		}
	}
	c.entries[url] = memoryEntry{meta: meta, expiresAt: now.Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweep drops expired entries. Callers hold mu.
func (c *MemoryCache) sweep(now time.Time) {
	for url, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, url)
		}
	}
}

// evictSoonest drops the entry that would expire first. Callers hold mu.
func (c *MemoryCache) evictSoonest() {
	var (
		victim  string
		soonest time.Time
		found   bool
	)
	for url, entry := range c.entries {
		if !found || entry.expiresAt.Before(soonest) {
			victim, soonest, found = url, entry.expiresAt, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}
