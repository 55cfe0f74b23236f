// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rankcache

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhkuo/taiyo/models"
)

// NoExpiry keeps an entry until it is deleted.
const NoExpiry time.Duration = 0

// Cache stores leaderboard record lists by key. Backends are best-effort:
// failures are logged and read as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.RankRecord, bool)
	Set(ctx context.Context, key string, records []models.RankRecord, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// SongKey is the key of a per-song, per-mode leaderboard.
func SongKey(songID, mode int) string {
	return fmt.Sprintf("%d-%d", songID, mode)
}

// TotalKey is the key of a category leaderboard. The prefix keeps it
// apart from song 0.
func TotalKey(category int) string {
	return fmt.Sprintf("total-%d", category)
}

// Fetch returns the cached records for key, or runs load and caches its
// result for ttl.
func Fetch(ctx context.Context, c Cache, key string, ttl time.Duration, load func() ([]models.RankRecord, error)) ([]models.RankRecord, error) {
	if records, found := c.Get(ctx, key); found {
		return records, nil
	}

	records, err := load()
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.RankRecord{}
	}

	c.Set(ctx, key, records, ttl)
	return records, nil
}
