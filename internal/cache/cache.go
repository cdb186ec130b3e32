package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error

	// Acquire sets key only if it does not exist and reports whether this
	// caller won it. Used to throttle repeated SLA notifications.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Del(ctx context.Context, keys ...string) error
}
