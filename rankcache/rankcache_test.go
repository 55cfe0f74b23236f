// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rankcache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/danielhkuo/taiyo/models"
)

func TestKeys(t *testing.T) {
	testCases := []struct {
		got  string
		want string
	}{
		{SongKey(10, 1), "10-1"},
		{SongKey(0, 12), "0-12"},
		{TotalKey(0), "total-0"},
		{TotalKey(2), "total-2"},
	}
	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Errorf("Expected key '%s', got '%s'", tc.want, tc.got)
		}
	}
	if SongKey(0, 1) == TotalKey(1) {
		t.Error("song 0 key must not collide with category key")
	}
}

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	records := []models.RankRecord{{ID: 1, AccountID: 7, Score: 900, Avatar: 3}}

	if _, found := c.Get(ctx, "10-1"); found {
		t.Fatal("Expected miss on empty cache")
	}

	c.Set(ctx, "10-1", records, NoExpiry)
	got, found := c.Get(ctx, "10-1")
	if !found || len(got) != 1 || got[0].Score != 900 {
		t.Fatalf("Expected cached record, got %v (found=%v)", got, found)
	}

	c.Delete(ctx, "10-1")
	if _, found := c.Get(ctx, "10-1"); found {
		t.Error("Expected miss after Delete")
	}

	c.Set(ctx, "total-0", records, 50*time.Millisecond)
	time.Sleep(1100 * time.Millisecond)
	if _, found := c.Get(ctx, "total-0"); found {
		t.Error("Expected entry to expire")
	}
}

func TestMemory(t *testing.T) {
	exerciseCache(t, NewMemory(time.Minute))
}

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer r.Close()

	r.Delete(context.Background(), "10-1")
	r.Delete(context.Background(), "total-0")
	exerciseCache(t, r)
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not a url"); err == nil {
		t.Error("Expected error for invalid url")
	}
}

func TestFetch(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()
	calls := 0
	load := func() ([]models.RankRecord, error) {
		calls++
		return []models.RankRecord{{ID: 1, Score: 10}}, nil
	}

	for i := 0; i < 3; i++ {
		records, err := Fetch(ctx, c, "5-1", NoExpiry, load)
		if err != nil || len(records) != 1 {
			t.Fatalf("Fetch() = %v, %v", records, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected loader to run once, ran %d times", calls)
	}

	_, err := Fetch(ctx, c, "6-1", NoExpiry, func() ([]models.RankRecord, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Error("Expected loader error")
	}
	if _, found := c.Get(ctx, "6-1"); found {
		t.Error("Expected nothing cached after loader error")
	}
}

func TestFetch_EmptyResultIsCached(t *testing.T) {
	c := NewMemory(time.Minute)
	records, err := Fetch(context.Background(), c, "7-1", NoExpiry, func() ([]models.RankRecord, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if records == nil {
		t.Error("Expected non-nil empty slice")
	}
	if _, found := c.Get(context.Background(), "7-1"); !found {
		t.Error("Expected empty board to be cached")
	}
}
