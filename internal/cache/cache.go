// Package cache is the best-effort lookaside cache in front of the store.
//
// No implementation is ever authoritative: every read may miss and every
// write may be dropped. Operations report success as a bool instead of an
// error because callers only log failures.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Cache is the backend contract. The service layer reads with Get, writes
// with Set and invalidates through Incr and Remove; Update, Decr and
// RemoveStartingWith round out the interface for callers that maintain
// their own keys, such as counters or bulk purges.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) bool
	// Update replaces an existing value and leaves missing keys missing.
	Update(ctx context.Context, key, value string) bool
	Remove(ctx context.Context, key string) bool
	RemoveStartingWith(ctx context.Context, prefix string) bool
	Incr(ctx context.Context, key string) bool
	Decr(ctx context.Context, key string) bool
}

// Keys builds namespaced keys of the form "<namespace>.<entity>:<lookup>".
type Keys struct {
	Namespace string
}

func (k Keys) Key(entity string, lookup any) string {
	return fmt.Sprintf("%s.%s:%v", k.Namespace, entity, lookup)
}

// Prefix matches every key of one entity kind, for RemoveStartingWith.
func (k Keys) Prefix(entity string) string {
	return fmt.Sprintf("%s.%s:", k.Namespace, entity)
}

// Generations guard against a reader putting back a value it loaded
// before a concurrent write was invalidated. Every invalidation bumps the
// key's generation; a reader notes the generation before it loads, stores
// it with the value, and later reads treat a moved generation as a miss.
// Generation counters live outside the entity namespace so prefix removal
// never resets them.

func generationKey(key string) string {
	return "gen/" + key
}

// Generation returns the current write generation of key. A missing
// counter is generation 0.
func Generation(ctx context.Context, c Cache, key string) int64 {
	raw, ok := c.Get(ctx, generationKey(key))
	if !ok {
		return 0
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// Invalidate bumps the generation of key and drops its value.
func Invalidate(ctx context.Context, c Cache, key string) bool {
	bumped := c.Incr(ctx, generationKey(key))
	return c.Remove(ctx, key) && bumped
}

type timed[T any] struct {
	Value      T     `json:"value"`
	Generation int64 `json:"gen"`
	// Expires is unix millis; 0 never expires.
	Expires int64 `json:"expires"`
}

// SetTimed stores value stamped with the generation it was loaded under
// and the time it stops being valid. A ttl <= 0 leaves expiry to the
// backend.
func SetTimed[T any](ctx context.Context, c Cache, key string, value T, gen int64, ttl time.Duration) bool {
	entry := timed[T]{Value: value, Generation: gen}
	if ttl > 0 {
		entry.Expires = time.Now().Add(ttl).UnixMilli()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return false
	}
	return c.Set(ctx, key, string(data))
}

// GetTimed returns the value stored by SetTimed if it was stamped with gen
// and has not expired. Expired and undecodable entries are removed.
func GetTimed[T any](ctx context.Context, c Cache, key string, gen int64) (T, bool) {
	var zero T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var entry timed[T]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.Remove(ctx, key)
		return zero, false
	}
	if entry.Expires != 0 && time.Now().UnixMilli() >= entry.Expires {
		c.Remove(ctx, key)
		return zero, false
	}
	if entry.Generation != gen {
		return zero, false
	}
	return entry.Value, true
}
