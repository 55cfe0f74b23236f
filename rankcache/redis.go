// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rankcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/taiyo/models"
)

const redisPrefix = "taiyo:rank:"

// Redis shares leaderboard entries between server instances.
type Redis struct {
	cli *redis.Client
}

// NewRedis connects to the server at url (redis://...).
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	cli := redis.NewClient(opt)
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{cli: cli}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]models.RankRecord, bool) {
	data, err := r.cli.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("rank cache read failed", "key", key, "error", err)
		return nil, false
	}

	var records []models.RankRecord
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("rank cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return records, true
}

func (r *Redis) Set(ctx context.Context, key string, records []models.RankRecord, ttl time.Duration) {
	data, err := json.Marshal(records)
	if err != nil {
		slog.Warn("rank cache encode failed", "key", key, "error", err)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.cli.Set(ctx, redisPrefix+key, data, ttl).Err(); err != nil {
		slog.Warn("rank cache write failed", "key", key, "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.cli.Del(ctx, redisPrefix+key).Err(); err != nil {
		slog.Warn("rank cache delete failed", "key", key, "error", err)
	}
}

func (r *Redis) Close() error {
	return r.cli.Close()
}
