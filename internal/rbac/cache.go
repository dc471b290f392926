package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedRoles keeps role lookups in Redis. It subscribes to role changes and
// drops the cached entry so the next request reads the store again.
type CachedRoles struct {
	source RoleSource
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedRoles wraps source with a Redis cache. A nil client disables caching.
func NewCachedRoles(source RoleSource, client *redis.Client, ttl time.Duration) *CachedRoles {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRoles{source: source, client: client, ttl: ttl}
}

func roleCacheKey(identityID string) string {
	return "rbac:roles:" + identityID
}

// Roles returns cached roles or loads them from the source.
func (c *CachedRoles) Roles(ctx context.Context, identityID string) ([]Role, error) {
	if c.client == nil {
		return c.source.Roles(ctx, identityID)
	}
	key := roleCacheKey(identityID)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var roles []Role
		if json.Unmarshal(raw, &roles) == nil {
			return roles, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return c.source.Roles(ctx, identityID)
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		roles, err := c.source.Roles(ctx, identityID)
		if err != nil {
			return nil, err
		}
		if roles == nil {
			roles = []Role{}
		}
		if data, err := json.Marshal(roles); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		return roles, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]Role), nil
}

// RoleChanged implements RoleObserver.
func (c *CachedRoles) RoleChanged(ctx context.Context, evt RoleEvent) {
	if c.client == nil || evt.IdentityID == "" {
		return
	}
	_ = c.client.Del(ctx, roleCacheKey(evt.IdentityID)).Err()
}

var (
	_ RoleSource   = (*CachedRoles)(nil)
	_ RoleObserver = (*CachedRoles)(nil)
)
