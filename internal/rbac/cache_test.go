package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func countingLoader(calls *int, snap Snapshot) func(context.Context) (Snapshot, error) {
	return func(context.Context) (Snapshot, error) {
		*calls++
		return snap, nil
	}
}

func TestCacheFetchStoresSnapshot(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	want := Snapshot{
		RolePermissions: []string{"sales.view", "sales.create"},
		Overrides:       map[string]bool{"users.delete": true},
	}

	var calls int
	got, err := cache.Fetch(ctx, 42, testNow, countingLoader(&calls, want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)

	got, err = cache.Fetch(ctx, 42, testNow, countingLoader(&calls, Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, want, got, "second fetch must come from redis")
	assert.Equal(t, 1, calls, "loader must not run on a hit")
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var calls int
	_, err := cache.Fetch(ctx, 42, testNow, countingLoader(&calls, Snapshot{RolePermissions: []string{"sales.view"}}))
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, 42))

	_, err = cache.Fetch(ctx, 42, testNow, countingLoader(&calls, Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheInvalidateAllRollsVersion(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var alice, bob int
	_, err := cache.Fetch(ctx, 1, testNow, countingLoader(&alice, Snapshot{}))
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, 2, testNow, countingLoader(&bob, Snapshot{}))
	require.NoError(t, err)

	require.NoError(t, cache.InvalidateAll(ctx))

	_, err = cache.Fetch(ctx, 1, testNow, countingLoader(&alice, Snapshot{}))
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, 2, testNow, countingLoader(&bob, Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, 2, alice)
	assert.Equal(t, 2, bob)
}

func TestCacheStaleHitReloads(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	expiry := testNow.Add(30 * time.Second)
	snap := Snapshot{RolePermissions: []string{"sales.create"}, ExpiresAt: &expiry}

	var calls int
	_, err := cache.Fetch(ctx, 42, testNow, countingLoader(&calls, snap))
	require.NoError(t, err)

	// The redis key may still exist, but past the snapshot's own expiry it
	// must not be served.
	_, err = cache.Fetch(ctx, 42, testNow.Add(time.Minute), countingLoader(&calls, Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheTTLCappedBySnapshotExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	expiry := testNow.Add(10 * time.Second)

	var calls int
	_, err := cache.Fetch(context.Background(), 42, testNow,
		countingLoader(&calls, Snapshot{RolePermissions: []string{"sales.view"}, ExpiresAt: &expiry}))
	require.NoError(t, err)

	ttl := mr.TTL("rbac:perms:1:42")
	require.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 10*time.Second, "cached snapshot must not outlive the earliest row expiry")
}

func TestCacheSkipsStoringExpiredSnapshot(t *testing.T) {
	cache, mr := newTestCache(t)
	expiry := testNow.Add(-time.Second)

	var calls int
	_, err := cache.Fetch(context.Background(), 42, testNow,
		countingLoader(&calls, Snapshot{ExpiresAt: &expiry}))
	require.NoError(t, err)
	assert.False(t, mr.Exists("rbac:perms:1:42"))
}

func TestCacheRedisDownFallsBackToLoader(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	var calls int
	snap, err := cache.Fetch(context.Background(), 42, testNow,
		countingLoader(&calls, Snapshot{RolePermissions: []string{"sales.view"}}))
	require.NoError(t, err, "redis trouble is a miss, not an error")
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"sales.view"}, snap.RolePermissions)
}

func TestCacheLoaderErrorPropagates(t *testing.T) {
	cache, _ := newTestCache(t)
	boom := errors.New("store down")
	_, err := cache.Fetch(context.Background(), 42, testNow, func(context.Context) (Snapshot, error) {
		return Snapshot{}, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	var calls int
	_, err := cache.Fetch(context.Background(), 42, testNow, countingLoader(&calls, Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.NoError(t, cache.Invalidate(context.Background(), 42))
	require.NoError(t, cache.InvalidateAll(context.Background()))
}
