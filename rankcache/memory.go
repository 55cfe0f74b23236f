// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rankcache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/danielhkuo/taiyo/models"
)

// Memory is an in-process cache backed by go-cache.
type Memory struct {
	c *cache.Cache
}

// NewMemory creates a memory cache that sweeps expired entries every
// cleanup interval.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{c: cache.New(cache.NoExpiration, cleanup)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]models.RankRecord, bool) {
	v, found := m.c.Get(key)
	if !found {
		return nil, false
	}
	records, ok := v.([]models.RankRecord)
	return records, ok
}

func (m *Memory) Set(ctx context.Context, key string, records []models.RankRecord, ttl time.Duration) {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	m.c.Set(key, records, ttl)
}

func (m *Memory) Delete(ctx context.Context, key string) {
	m.c.Delete(key)
}
