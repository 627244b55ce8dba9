// Package cache holds recently seen keys so a message delivered by both the
// mailbox and the webhook is ingested once.
package cache

import (
	"sync"
	"time"
)

// entry is a claimed key with its expiration
type entry struct {
	expiresAt time.Time
}

// Cache is an in-memory TTL set safe for concurrent use
type Cache struct {
	items map[string]entry
	mutex sync.Mutex
	now   func() time.Time
}

// New creates a new cache instance
func New() *Cache {
	return &Cache{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Claim marks key as seen for ttl. It returns false when the key was already
// claimed and has not expired, so exactly one caller wins.
func (c *Cache) Claim(key string, ttl time.Duration) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if item, ok := c.items[key]; ok && now.Before(item.expiresAt) {
		return false
	}
	c.items[key] = entry{expiresAt: now.Add(ttl)}
	return true
}

// Delete releases a claim
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
}

// Purge drops expired claims and returns how many were removed
func (c *Cache) Purge() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored claims, expired ones included
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}
