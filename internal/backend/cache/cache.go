// Package cache provides an optional Redis-backed byte cache for finished
// exports. Cache faults are logged and degrade to a miss; the pipeline never
// depends on the cache for correctness.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type ExportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewExportCache connects to Redis at the given address. Entries expire after
// ttl; a non-positive ttl keeps them until Redis evicts them.
func NewExportCache(address string, ttl time.Duration) *ExportCache {
	return &ExportCache{
		client: redis.NewClient(&redis.Options{Addr: address}),
		ttl:    ttl,
	}
}

func (c *ExportCache) Close() error {
	return c.client.Close()
}

// Get returns the cached export for key, or ok=false on a miss or any cache
// fault.
func (c *ExportCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("export cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores the export bytes under key. Failures are logged, not returned;
// a write miss only costs a future recompute.
func (c *ExportCache) Set(ctx context.Context, key string, data []byte) {
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("export cache write failed", "key", key, "error", err)
	}
}

// Key derives a stable cache key from everything that influences the encoded
// output. Any part changing (including the record's update time) produces a
// new key, so stale entries simply age out.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "export:" + hex.EncodeToString(sum[:])
}
