package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "access:version"
	bumpChannel     = "access.bump"
)

// Cache keeps resolved contexts in Redis under versioned keys. Bump moves
// every reader to a new version, so nothing cached before it is served again.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache returns a cache, or nil when ttl disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so concurrent initialisers cannot reset a bumped version.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Fetch returns the cached context for userID or fills it with resolve.
// Concurrent fills for the same key share one resolve call. Resolve errors
// are returned and never cached.
func (c *Cache) Fetch(ctx context.Context, userID string, resolve func(context.Context, string) (Context, error)) (Context, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return resolve(ctx, userID)
	}
	key := fmt.Sprintf("access:ctx:%s:%d", userID, ver)

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err == nil && snap.UserID == userID {
			return FromSnapshot(snap), nil
		}
	}

	// The shared fill outlives any single waiter; each waiter still
	// honours its own ctx. Resolve bounds every lookup with its timeout.
	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		ac, err := resolve(fillCtx, userID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(ac.Snapshot()); err == nil {
			_ = c.client.Set(fillCtx, key, raw, c.ttl).Err()
		}
		return ac, nil
	})
	select {
	case <-ctx.Done():
		return Context{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Context{}, res.Err
		}
		return res.Val.(Context), nil
	}
}

// Bump invalidates every cached context and publishes the new version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}
