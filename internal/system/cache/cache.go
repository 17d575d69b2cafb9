/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package cache provides a bounded in-memory cache with per entry expiry and least
// recently used eviction.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const (
	// defaultCacheTTL represents the default TTL for cache entries.
	defaultCacheTTL = time.Hour
	// defaultCacheSize represents the default number of entries of a cache.
	defaultCacheSize = 1000
)

// CacheStat represents cache statistics.
type CacheStat struct {
	Enabled    bool
	Size       int
	MaxSize    int
	HitCount   int64
	MissCount  int64
	HitRate    float64
	EvictCount int64
}

// CleanableInterface is implemented by caches that can drop expired entries on demand.
type CleanableInterface interface {
	GetName() string
	CleanupExpired() int
}

type cacheEntry[T any] struct {
	key        string
	value      T
	expiryTime time.Time
	element    *list.Element
}

// Cache is a thread safe LRU cache whose entries expire after a TTL.
type Cache[T any] struct {
	name       string
	enabled    bool
	size       int
	ttl        time.Duration
	mu         sync.Mutex
	entries    map[string]*cacheEntry[T]
	order      *list.List
	hitCount   int64
	missCount  int64
	evictCount int64
	now        func() time.Time
	logger     *log.Logger
}

// NewCache creates a cache from the cache configuration. Zero sizes and TTLs fall back to
// the defaults.
func NewCache[T any](name string, cfg config.CacheConfig) *Cache[T] {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Cache"),
		log.String("name", name))

	size := cfg.Size
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if cfg.Disabled {
		logger.Warn("Cache is disabled")
	} else {
		logger.Debug("Initializing cache", log.Int("size", size), log.Duration("ttl", ttl))
	}

	return &Cache[T]{
		name:    name,
		enabled: !cfg.Disabled,
		size:    size,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry[T]),
		order:   list.New(),
		now:     time.Now,
		logger:  logger,
	}
}

// Set adds or replaces an entry using the default TTL of the cache.
func (c *Cache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL adds or replaces an entry that expires after ttl.
func (c *Cache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	if !c.enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiryTime := c.now().Add(ttl)
	if existing, ok := c.entries[key]; ok {
		existing.value = value
		existing.expiryTime = expiryTime
		c.order.MoveToFront(existing.element)
		return
	}

	entry := &cacheEntry[T]{key: key, value: value, expiryTime: expiryTime}
	entry.element = c.order.PushFront(entry)
	c.entries[key] = entry

	for len(c.entries) > c.size {
		c.evictOldest()
	}
}

// Get returns a live entry and marks it as recently used.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if !c.enabled {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.missCount++
		return zero, false
	}
	if c.now().After(entry.expiryTime) {
		c.remove(entry)
		c.missCount++
		return zero, false
	}

	c.order.MoveToFront(entry.element)
	c.hitCount++
	return entry.value, true
}

// Update replaces the value of a live entry without changing its expiry.
func (c *Cache[T]) Update(key string, fn func(T) T) bool {
	if !c.enabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiryTime) {
		return false
	}
	entry.value = fn(entry.value)
	return true
}

// Delete removes an entry.
func (c *Cache[T]) Delete(key string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		c.remove(entry)
	}
}

// Clear removes every entry and resets the statistics.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry[T])
	c.order.Init()
	c.hitCount = 0
	c.missCount = 0
	c.evictCount = 0
}

// IsEnabled returns whether the cache is enabled.
func (c *Cache[T]) IsEnabled() bool {
	return c.enabled
}

// GetName returns the name of the cache.
func (c *Cache[T]) GetName() string {
	return c.name
}

// GetStats returns cache statistics.
func (c *Cache[T]) GetStats() CacheStat {
	if !c.enabled {
		return CacheStat{Enabled: false}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hitCount + c.missCount; total > 0 {
		hitRate = float64(c.hitCount) / float64(total)
	}
	return CacheStat{
		Enabled:    true,
		Size:       len(c.entries),
		MaxSize:    c.size,
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRate:    hitRate,
		EvictCount: c.evictCount,
	}
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (c *Cache[T]) CleanupExpired() int {
	if !c.enabled {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cleaned := 0
	for _, entry := range c.entries {
		if now.After(entry.expiryTime) {
			c.remove(entry)
			cleaned++
		}
	}
	if cleaned > 0 {
		c.logger.Debug("Expired cache entries cleaned", log.Int("count", cleaned))
	}
	return cleaned
}

func (c *Cache[T]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*cacheEntry[T])
	c.remove(entry)
	c.evictCount++
	c.logger.Debug("Cache entry evicted", log.String("key", entry.key))
}

func (c *Cache[T]) remove(entry *cacheEntry[T]) {
	delete(c.entries, entry.key)
	c.order.Remove(entry.element)
}
