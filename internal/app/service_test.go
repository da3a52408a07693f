package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"atto/internal/auth"
	"atto/internal/cache"
	"atto/internal/config"
	"atto/internal/rbac"
	"atto/internal/store"
	"atto/internal/util"
)

func testConfig() config.Config {
	return config.Config{
		Namespace:           "atto",
		StoreTimeout:        5 * time.Second,
		RegistrationEnabled: true,
		BannedUsernames:     []string{"admin", "deleted"},
		BannedTitles:        []string{"void"},
		MaxOwnedCommunities: 5,
	}
}

func newTestService(t *testing.T, c cache.Cache) *Service {
	t.Helper()
	auth.Cost = bcrypt.MinCost
	s, err := store.Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "atto.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ids, err := util.NewIDGenerator(1)
	require.NoError(t, err)
	return New(testConfig(), s, c, ids)
}

// backends returns one constructor per cache implementation so every
// workflow test runs against each of them.
func backends(t *testing.T) map[string]func(t *testing.T) cache.Cache {
	return map[string]func(t *testing.T) cache.Cache{
		"none": func(t *testing.T) cache.Cache { return cache.NoCache{} },
		"lru": func(t *testing.T) cache.Cache {
			c, err := cache.NewLRUCache(256)
			require.NoError(t, err)
			return c
		},
		"redis": func(t *testing.T) cache.Cache {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return cache.NewRedisCacheWithClient(client, time.Hour)
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, svc *Service)) {
	t.Helper()
	for name, newCache := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, newTestService(t, newCache(t)))
		})
	}
}

func signup(t *testing.T, svc *Service, username string) store.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), username, "secret1")
	require.NoError(t, err)
	return account
}

func promote(t *testing.T, svc *Service, account store.Account, role rbac.Platform) store.Account {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.store.UpdateAccountPermissions(ctx, account.ID, role))
	updated, err := svc.store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	return updated
}

func fresh(t *testing.T, svc *Service, id uint64) store.Account {
	t.Helper()
	account, err := svc.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account
}

func TestStoreErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "missing row", err: store.ErrNotFound, kind: ErrNotFound},
		{name: "wrapped missing row", err: errors.Join(errors.New("get post"), store.ErrNotFound), kind: ErrNotFound},
		{name: "timeout", err: context.DeadlineExceeded, kind: ErrStoreUnavailable},
		{name: "anything else", err: errors.New("connection refused"), kind: ErrStoreUnavailable},
		{name: "domain error passes through", err: denied("nope"), kind: ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storeError("post", tt.err)
			if !errors.Is(got, tt.kind) {
				t.Fatalf("storeError() = %v, want kind %v", got, tt.kind)
			}
		})
	}
	require.NoError(t, storeError("post", nil))
}

func TestResultFrom(t *testing.T) {
	ok := ResultFrom(42, nil)
	require.True(t, ok.OK)
	require.Equal(t, 42, ok.Payload)

	failed := ResultFrom(42, invalid("title in use", nil))
	require.False(t, failed.OK)
	require.Equal(t, "title in use", failed.Message)
	require.Zero(t, failed.Payload)

	plain := ResultFrom("x", errors.New("boom"))
	require.False(t, plain.OK)
	require.Equal(t, "boom", plain.Message)
}

func TestDomainErrorStatus(t *testing.T) {
	var domain *DomainError
	require.True(t, errors.As(notFound("post"), &domain))
	require.Equal(t, 404, domain.Status)
	require.True(t, errors.As(denied("x"), &domain))
	require.Equal(t, 403, domain.Status)
	require.True(t, errors.As(unavailable(errors.New("down")), &domain))
	require.Equal(t, 503, domain.Status)
	require.ErrorContains(t, domain, "down")
}

func TestNotFoundIsNotUnavailable(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, 12345)
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrStoreUnavailable)

	require.NoError(t, svc.store.Close())
	_, err = svc.GetAccount(ctx, 12345)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestCachedReadSurvivesStoreOutage(t *testing.T) {
	c, err := cache.NewLRUCache(16)
	require.NoError(t, err)
	svc := newTestService(t, c)
	ctx := context.Background()

	alice := signup(t, svc, "alice")
	_, err = svc.GetAccount(ctx, alice.ID)
	require.NoError(t, err)

	require.NoError(t, svc.store.Close())
	cached, err := svc.GetAccount(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", cached.Username)
	require.Empty(t, cached.Password)
}

// interleavingCache runs a write between a reader's store load and its
// cache populate for one key.
type interleavingCache struct {
	cache.Cache
	key   string
	armed atomic.Bool
	write func()
}

func (c *interleavingCache) Set(ctx context.Context, key, value string) bool {
	if key == c.key && c.armed.CompareAndSwap(true, false) {
		c.write()
	}
	return c.Cache.Set(ctx, key, value)
}

func TestConcurrentWriteDuringPopulateIsNotCached(t *testing.T) {
	for name, newCache := range backends(t) {
		if name == "none" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			c := &interleavingCache{Cache: newCache(t)}
			svc := newTestService(t, c)
			ctx := context.Background()
			owner := signup(t, svc, "alice")
			community, err := svc.CreateCommunity(ctx, &owner, "foo")
			require.NoError(t, err)
			require.NotEqual(t, store.WriteEverybody, community.WriteAccess)

			c.key = svc.keys.Key(entityCommunity, community.ID)
			c.write = func() {
				require.NoError(t, svc.UpdateCommunityAccess(ctx, &owner, community.ID, store.ReadEverybody, store.WriteEverybody, store.JoinEverybody))
			}
			c.armed.Store(true)

			loaded, err := svc.GetCommunity(ctx, community.ID)
			require.NoError(t, err)
			require.NotEqual(t, store.WriteEverybody, loaded.WriteAccess, "the read started before the write")
			require.False(t, c.armed.Load())

			current, err := svc.GetCommunity(ctx, community.ID)
			require.NoError(t, err)
			require.Equal(t, store.WriteEverybody, current.WriteAccess)
		})
	}
}

func TestRenameInvalidatesBothTitleKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *Service) {
		ctx := context.Background()
		owner := signup(t, svc, "alice")
		community, err := svc.CreateCommunity(ctx, &owner, "foo")
		require.NoError(t, err)

		byTitle, err := svc.GetCommunityByTitle(ctx, "foo")
		require.NoError(t, err)
		require.Equal(t, community.ID, byTitle.ID)
		_, err = svc.GetCommunity(ctx, community.ID)
		require.NoError(t, err)

		require.NoError(t, svc.RenameCommunity(ctx, &owner, community.ID, "bar"))

		_, err = svc.GetCommunityByTitle(ctx, "foo")
		require.ErrorIs(t, err, ErrNotFound)
		renamed, err := svc.GetCommunityByTitle(ctx, "bar")
		require.NoError(t, err)
		require.Equal(t, community.ID, renamed.ID)
		byID, err := svc.GetCommunity(ctx, community.ID)
		require.NoError(t, err)
		require.Equal(t, "bar", byID.Title)
	})
}

func TestPlatformOverrideIsAudited(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	owner := signup(t, svc, "alice")
	mod := promote(t, svc, signup(t, svc, "bob"), rbac.PlatformDefault|rbac.ManageCommunities)
	community, err := svc.CreateCommunity(ctx, &owner, "foo")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateCommunityContext(ctx, &owner, community.ID, store.CommunityContext{DisplayName: "Foo"}))
	entries, err := svc.store.ListAuditLog(ctx, 50, 0)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.NoError(t, svc.UpdateCommunityContext(ctx, &mod, community.ID, store.CommunityContext{DisplayName: "Moderated"}))
	entries, err = svc.store.ListAuditLog(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, mod.ID, entries[0].Moderator)
	require.Contains(t, entries[0].Content, "MANAGE_COMMUNITIES")
}

func TestActorIsReloaded(t *testing.T) {
	svc := newTestService(t, cache.NoCache{})
	ctx := context.Background()
	owner := signup(t, svc, "alice")
	community, err := svc.CreateCommunity(ctx, &owner, "foo")
	require.NoError(t, err)

	// a stale copy claiming admin rights grants nothing
	forged := signup(t, svc, "bob")
	forged.Permissions = rbac.PlatformAdministrator
	err = svc.DeleteCommunity(ctx, &forged, community.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)

	banned := promote(t, svc, signup(t, svc, "carol"), rbac.PlatformDefault|rbac.PlatformBanned)
	_, err = svc.JoinCommunity(ctx, &banned, community.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.JoinCommunity(ctx, nil, community.ID)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCheckLength(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{name: "too short", value: "a"},
		{name: "lower bound", value: "ab", ok: true},
		{name: "upper bound", value: "abcd", ok: true},
		{name: "too long", value: "abcde"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLength("title", tt.value, 2, 4)
			if tt.ok && err != nil {
				t.Fatalf("checkLength() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrValidation) {
				t.Fatalf("checkLength() error = %v, want validation error", err)
			}
		})
	}
}
