// Package cache holds the shared, viewer-independent read cache used by the
// post service. Values are opaque byte slices (JSON in practice).
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"betternews/internal/config"
)

// ErrCacheDisabled is returned by the redis store when it was never connected
var ErrCacheDisabled = errors.New("cache is disabled")

// Store is a TTL key/value cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically increments the decimal counter at key, starting
	// from 0, and returns the new value. Get reads it back as decimal text.
	Incr(ctx context.Context, key string) (int64, error)
}

// New builds the store selected by cfg.Driver.
func New(cfg config.CacheConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "none":
		logger.Info("Post cache disabled")
		return Nop{}, nil
	case "memory":
		return NewMemory(cfg.Size)
	case "redis":
		return NewRedis(cfg.RedisURL, logger)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error                  { return nil }
func (Nop) Incr(context.Context, string) (int64, error)              { return 0, nil }
