package ruz

import (
	"context"
	"sync"
	"time"

	"github.com/Proton-105/ruz-auth/internal/domain"
)

// Entry is a cached decode result. Found is false for a cached miss.
type Entry struct {
	Found  bool    `json:"found"`
	Code   string  `json:"code"`
	NameSk *string `json:"sk,omitempty"`
	NameEn *string `json:"en,omitempty"`
}

func (e Entry) decoded() *domain.Decoded {
	if !e.Found {
		return nil
	}

	return &domain.Decoded{
		Code:  e.Code,
		Label: &domain.Label{Sk: e.NameSk, En: e.NameEn},
	}
}

// Cache stores decode results. Get reports ok=false when key is absent or expired.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return Entry{}, false, nil
	}

	if !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		if cur, still := c.items[key]; still && cur.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return Entry{}, false, nil
	}

	return item.entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.items[key] = memoryItem{entry: entry, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (c *MemoryCache) Cleanup() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
