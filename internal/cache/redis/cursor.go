package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ksenkin/tradediary/internal/domain"
)

// cursorTTL keeps stale cursors from pinning an owner's sync window forever;
// after expiry the next sync falls back to the configured lookback.
const cursorTTL = 30 * 24 * time.Hour

// SyncCursorCache implements domain.SyncCursorCache. It remembers the end
// of the last successful sync window per (owner, exchange) so scheduled
// re-syncs overlap the previous window instead of re-reading the full
// lookback every time.
type SyncCursorCache struct {
	rdb *redis.Client
}

// NewSyncCursorCache creates a SyncCursorCache backed by the given Client.
func NewSyncCursorCache(c *Client) *SyncCursorCache {
	return &SyncCursorCache{rdb: c.Underlying()}
}

func cursorKey(ownerID int64, exchange string) string {
	return fmt.Sprintf("tradediary:cursor:%d:%s", ownerID, exchange)
}

// Get returns the stored cursor in ms since epoch, or 0 when none is set.
func (c *SyncCursorCache) Get(ctx context.Context, ownerID int64, exchange string) (int64, error) {
	val, err := c.rdb.Get(ctx, cursorKey(ownerID, exchange)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get sync cursor: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse sync cursor %q: %w", val, err)
	}
	return ms, nil
}

// Set stores the cursor in ms since epoch.
func (c *SyncCursorCache) Set(ctx context.Context, ownerID int64, exchange string, endMs int64) error {
	err := c.rdb.Set(ctx, cursorKey(ownerID, exchange), strconv.FormatInt(endMs, 10), cursorTTL).Err()
	if err != nil {
		return fmt.Errorf("redis: set sync cursor: %w", err)
	}
	return nil
}

var _ domain.SyncCursorCache = (*SyncCursorCache)(nil)
