package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BusyLatch guards a mutating action against duplicate submission: while one
// request for (session, action) runs, others are refused with ErrBusy. The
// TTL bounds how long a crashed request can hold the latch.
type BusyLatch struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBusyLatch constructs a latch backed by Redis.
func NewBusyLatch(client *redis.Client, ttl time.Duration) *BusyLatch {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BusyLatch{client: client, ttl: ttl}
}

// BusyKey builds the redis key of a latch.
func BusyKey(sessionID, action string) string {
	return fmt.Sprintf("busy:%s:%s", sessionID, action)
}

// Acquire takes the latch and returns the function that clears it. Callers
// must invoke release on success and on failure.
func (l *BusyLatch) Acquire(ctx context.Context, sessionID, action string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	if sessionID == "" || action == "" {
		return nil, errors.New("busy latch: session and action required")
	}
	key := BusyKey(sessionID, action)
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("busy latch: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		// The request context may already be done; clearing must still happen.
		_ = l.client.Del(context.WithoutCancel(ctx), key).Err()
	}, nil
}

// Held reports whether the latch is currently taken.
func (l *BusyLatch) Held(ctx context.Context, sessionID, action string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	n, err := l.client.Exists(ctx, BusyKey(sessionID, action)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
