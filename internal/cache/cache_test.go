package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func backends(t *testing.T) map[string]Cache {
	redisCache, _ := setupTestRedis(t)
	lruCache, err := NewLRUCache(128)
	require.NoError(t, err)
	return map[string]Cache{
		"redis": redisCache,
		"lru":   lruCache,
	}
}

func TestNewRedisCacheRejectsUnreachableServer(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := NewRedisCache("redis://"+addr, time.Hour); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestGetSetRemove(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := c.Get(ctx, "atto.user:1")
			require.False(t, ok)

			require.True(t, c.Set(ctx, "atto.user:1", `{"id":1}`))
			value, ok := c.Get(ctx, "atto.user:1")
			require.True(t, ok)
			require.Equal(t, `{"id":1}`, value)

			require.True(t, c.Remove(ctx, "atto.user:1"))
			_, ok = c.Get(ctx, "atto.user:1")
			require.False(t, ok)
		})
	}
}

func TestUpdateOnlyTouchesExistingKeys(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.False(t, c.Update(ctx, "atto.post:9", "x"))
			_, ok := c.Get(ctx, "atto.post:9")
			require.False(t, ok)

			c.Set(ctx, "atto.post:9", "x")
			require.True(t, c.Update(ctx, "atto.post:9", "y"))
			value, _ := c.Get(ctx, "atto.post:9")
			require.Equal(t, "y", value)
		})
	}
}

func TestRemoveStartingWith(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			keys := Keys{Namespace: "atto"}
			for i := 0; i < 250; i++ {
				c.Set(ctx, keys.Key("community", i), "c")
			}
			c.Set(ctx, keys.Key("user", 1), "u")

			require.True(t, c.RemoveStartingWith(ctx, keys.Prefix("community")))

			for _, i := range []int{0, 99, 100, 249} {
				_, ok := c.Get(ctx, keys.Key("community", i))
				require.False(t, ok, "community %d survived", i)
			}
			_, ok := c.Get(ctx, keys.Key("user", 1))
			require.True(t, ok)
		})
	}
}

func TestIncrDecr(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, c.Incr(ctx, "atto.hits:1"))
			require.True(t, c.Incr(ctx, "atto.hits:1"))
			require.True(t, c.Decr(ctx, "atto.hits:1"))
			value, ok := c.Get(ctx, "atto.hits:1")
			require.True(t, ok)
			require.Equal(t, "1", value)

			c.Set(ctx, "atto.hits:2", "not a number")
			require.False(t, c.Incr(ctx, "atto.hits:2"))
		})
	}
}

func TestRedisEntriesExpire(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "atto.user:5", "v")
	s.FastForward(2 * time.Hour)

	if _, ok := c.Get(ctx, "atto.user:5"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestTimedValues(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRUCache(16)
	require.NoError(t, err)

	type payload struct {
		Name string `json:"name"`
	}

	require.True(t, SetTimed(ctx, c, "atto.totp:1", payload{Name: "alice"}, 0, time.Minute))
	got, ok := GetTimed[payload](ctx, c, "atto.totp:1", 0)
	require.True(t, ok)
	require.Equal(t, "alice", got.Name)

	require.True(t, SetTimed(ctx, c, "atto.totp:2", payload{Name: "bob"}, 0, -time.Second))
	_, ok = GetTimed[payload](ctx, c, "atto.totp:2", 0)
	require.True(t, ok, "a non-positive ttl never expires")

	require.True(t, SetTimed(ctx, c, "atto.totp:3", payload{Name: "carol"}, 0, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok = GetTimed[payload](ctx, c, "atto.totp:3", 0)
	require.False(t, ok)
	_, ok = c.Get(ctx, "atto.totp:3")
	require.False(t, ok, "expired entry should be removed")
}

func TestGenerations(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := Keys{Namespace: "atto"}.Key("community", 7)
			require.Zero(t, Generation(ctx, c, key))

			// A reader notes the generation, then a writer invalidates
			// before the reader stores what it loaded.
			gen := Generation(ctx, c, key)
			require.True(t, Invalidate(ctx, c, key))
			require.True(t, SetTimed(ctx, c, key, "old", gen, time.Minute))

			current := Generation(ctx, c, key)
			require.EqualValues(t, 1, current)
			_, ok := GetTimed[string](ctx, c, key, current)
			require.False(t, ok, "value stamped with an older generation must miss")

			require.True(t, SetTimed(ctx, c, key, "new", current, time.Minute))
			got, ok := GetTimed[string](ctx, c, key, current)
			require.True(t, ok)
			require.Equal(t, "new", got)

			require.True(t, c.RemoveStartingWith(ctx, Keys{Namespace: "atto"}.Prefix("community")))
			require.EqualValues(t, 1, Generation(ctx, c, key), "prefix removal keeps generations")
		})
	}
}

func TestNoCache(t *testing.T) {
	ctx := context.Background()
	var c Cache = NoCache{}

	require.True(t, c.Set(ctx, "k", "v"))
	_, ok := c.Get(ctx, "k")
	require.False(t, ok)
	require.True(t, c.Update(ctx, "k", "v"))
	require.True(t, c.Remove(ctx, "k"))
	require.True(t, c.RemoveStartingWith(ctx, "k"))
	require.True(t, c.Incr(ctx, "k"))
	require.True(t, c.Decr(ctx, "k"))

	_, ok = GetTimed[string](ctx, c, "k", 0)
	require.False(t, ok)
}
