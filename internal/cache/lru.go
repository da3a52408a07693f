package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache keeps entries in process memory. It is the cache used when no
// Redis is configured but caching is still wanted.
type LRUCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, string]
}

func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 10000
	}
	items, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{items: items}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (string, bool) {
	return c.items.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key, value string) bool {
	c.items.Add(key, value)
	return true
}

func (c *LRUCache) Update(_ context.Context, key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.items.Contains(key) {
		return false
	}
	c.items.Add(key, value)
	return true
}

func (c *LRUCache) Remove(_ context.Context, key string) bool {
	c.items.Remove(key)
	return true
}

func (c *LRUCache) RemoveStartingWith(_ context.Context, prefix string) bool {
	for _, key := range c.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.items.Remove(key)
		}
	}
	return true
}

func (c *LRUCache) Incr(_ context.Context, key string) bool {
	return c.add(key, 1)
}

func (c *LRUCache) Decr(_ context.Context, key string) bool {
	return c.add(key, -1)
}

// add follows Redis semantics: a missing key counts as 0 and a
// non-integer value is an error.
func (c *LRUCache) add(key string, delta int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	var current int64
	if raw, ok := c.items.Get(key); ok {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return false
		}
		current = parsed
	}
	c.items.Add(key, strconv.FormatInt(current+delta, 10))
	return true
}
