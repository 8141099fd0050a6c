package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "rbac:cache:version"

// Snapshot is a user's resolved policy at load time: the union of permission
// ids granted by effective roles, plus the user's effective overrides.
// ExpiresAt is the earliest expires_at among the rows the snapshot was built
// from; past that instant the snapshot no longer reflects the stored policy.
type Snapshot struct {
	RolePermissions []string        `json:"role_permissions"`
	Overrides       map[string]bool `json:"overrides,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
}

func (s Snapshot) staleAt(at time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(at)
}

// Cache keeps per-user snapshots in Redis. Mutations through the service
// invalidate the affected user eagerly; role edits bump a global version so
// every cached key rolls over at once. The TTL bounds how stale a snapshot
// can get when a row expires mid-window.
//
// Redis trouble is treated as a cache miss, never as an authorization error.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache constructs a Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Fetch returns the user's snapshot as of at, loading and storing it on a
// miss. A cached snapshot whose earliest row expiry has passed is a miss: an
// expired row must stop granting the moment it expires, not when the TTL
// runs out. Concurrent fetches for the same user collapse into one loader
// call.
func (c *Cache) Fetch(ctx context.Context, userID int64, at time.Time, loader func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	v, err, _ := c.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		key, keyErr := c.key(ctx, userID)
		if keyErr == nil {
			if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
				var snap Snapshot
				if err := json.Unmarshal(data, &snap); err == nil && !snap.staleAt(at) {
					return snap, nil
				}
			}
		}
		snap, err := loader(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		if keyErr == nil {
			if ttl, ok := c.storeTTL(snap, at); ok {
				if data, err := json.Marshal(snap); err == nil {
					c.client.Set(ctx, key, data, ttl)
				}
			}
		}
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// storeTTL caps the configured TTL so the cached snapshot cannot outlive the
// earliest row expiry. A snapshot already at or past that expiry is not
// cached at all.
func (c *Cache) storeTTL(s Snapshot, at time.Time) (time.Duration, bool) {
	ttl := c.ttl
	if s.ExpiresAt != nil {
		until := s.ExpiresAt.Sub(at)
		if until <= 0 {
			return 0, false
		}
		if ttl <= 0 || until < ttl {
			ttl = until
		}
	}
	return ttl, true
}

// Invalidate drops the cached snapshot for one user.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// InvalidateAll rolls the global version, orphaning every cached snapshot.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("rbac:perms:%d:%d", ver, userID), nil
}
