// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ranking

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/danielhkuo/taiyo/catalog"
	"github.com/danielhkuo/taiyo/fields"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/rankcache"
)

// memStore keeps results and wallets in memory with the same upsert rules
// as the SQL store.
type memStore struct {
	results  []models.Result
	accounts map[int64]*models.Account
	wallets  map[string]*models.Wallet
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[int64]*models.Account{},
		wallets:  map[string]*models.Wallet{},
	}
}

func (m *memStore) SubmitResult(ctx context.Context, r *models.Result, delta func(old, new int64) models.Delta) (int64, error) {
	a := m.accounts[r.UserID]
	for i := range m.results {
		ex := &m.results[i]
		if ex.UserID == r.UserID && ex.SongID == r.SongID && ex.Mode == r.Mode {
			if r.Score > ex.Score {
				d := delta(ex.Score, r.Score)
				id := ex.ID
				*ex = *r
				ex.ID = id
				a.MobileDelta += d.Mobile
				a.ArcadeDelta += d.Arcade
				a.TotalDelta += d.Total
			}
			return ex.ID, nil
		}
	}
	m.nextID++
	row := *r
	row.ID = m.nextID
	m.results = append(m.results, row)
	d := delta(0, r.Score)
	a.MobileDelta += d.Mobile
	a.ArcadeDelta += d.Arcade
	a.TotalDelta += d.Total
	return row.ID, nil
}

func (m *memStore) SongRecords(ctx context.Context, songID, mode int) ([]models.RankRecord, error) {
	var out []models.RankRecord
	for _, r := range m.results {
		if r.SongID == songID && r.Mode == mode {
			out = append(out, models.RankRecord{ID: r.ID, AccountID: r.UserID, Score: r.Score, Avatar: r.Avatar})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) CategoryRecords(ctx context.Context, category int) ([]models.RankRecord, error) {
	var out []models.RankRecord
	for _, a := range m.accounts {
		v := []int64{a.TotalDelta, a.MobileDelta, a.ArcadeDelta}[category]
		if v > 0 {
			out = append(out, models.RankRecord{ID: a.ID, AccountID: a.ID, Score: v, Avatar: a.Avatar, Username: a.Username, Title: a.Title})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (m *memStore) AccountsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Account, error) {
	out := map[int64]*models.Account{}
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *memStore) UpdateWallet(ctx context.Context, deviceID string, merged bool, fn func(*models.Wallet) error) error {
	w, ok := m.wallets[deviceID]
	if !ok {
		return models.ErrNotFound
	}
	cp := *w
	cp.Stages = slices.Clone(w.Stages)
	if err := fn(&cp); err != nil {
		return err
	}
	*w = cp
	return nil
}

func (m *memStore) addPlayer(accountID int64, username, deviceID string) *identity.Identity {
	a := &models.Account{ID: accountID, Username: username, CoinMP: 1, Title: 3, Avatar: 4}
	m.accounts[accountID] = a
	m.wallets[deviceID] = &models.Wallet{DeviceID: deviceID, AccountID: &accountID, Coin: 10}
	return &identity.Identity{
		DeviceID: deviceID,
		Device:   &models.Device{DeviceID: deviceID, UserID: &accountID, Title: 1, Avatar: 2},
		Account:  a,
	}
}

func newEngine(t *testing.T) (*Engine, *memStore, rankcache.Cache) {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	cache := rankcache.NewMemory(time.Minute)
	return NewEngine(store, cache, cat, 1), store, cache
}

func submission(song, mode int, score int64) Submission {
	return Submission{
		SongID: song, Mode: mode, Avatar: 7, Score: score,
		Stats: "12,3,4", HighScore: "100", PlayResult: `1,2,"x"`,
		OS: "ios", OSVersion: "17", Version: "1.0",
	}
}

func TestScoreDelta(t *testing.T) {
	testCases := []struct {
		mode int
		old  int64
		new  int64
		want models.Delta
	}{
		{1, 0, 500, models.Delta{Mobile: 500, Total: 500}},
		{3, 500, 700, models.Delta{Mobile: 200, Total: 200}},
		{12, 100, 400, models.Delta{Arcade: 300, Total: 300}},
		{0, 0, 900, models.Delta{}},
		{4, 0, 900, models.Delta{}},
	}
	for _, tc := range testCases {
		if got := ScoreDelta(tc.mode, tc.old, tc.new); got != tc.want {
			t.Errorf("ScoreDelta(%d, %d, %d) = %+v, want %+v", tc.mode, tc.old, tc.new, got, tc.want)
		}
	}
}

func TestParseBlob(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		wantLen int
		wantErr bool
	}{
		{"single value", "42", 1, false},
		{"list", `1,2.5,"a",[3]`, 4, false},
		{"broken", "1,,2", 0, true},
		{"bracket escape", "1],[2", 0, true},
		{"empty", "", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseBlob(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseBlob(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if err == nil && len(v) != tc.wantLen {
				t.Errorf("Expected %d values, got %d", tc.wantLen, len(v))
			}
			if err != nil && !errors.Is(err, ErrInvalidResult) {
				t.Errorf("Expected ErrInvalidResult, got %v", err)
			}
		})
	}
}

func TestSubmissionFromFields(t *testing.T) {
	f := fields.Fields{
		"vid": {"dev"}, "stts": {"1,2"}, "id": {"10"}, "mode": {"1"}, "avatar": {"3"},
		"score": {"500"}, "high_score": {"1"}, "play_rslt": {"1"}, "item": {"0"},
		"os": {"ios"}, "os_ver": {"17"}, "ver": {"1.0"},
	}
	sub, err := SubmissionFromFields(f)
	if err != nil {
		t.Fatalf("SubmissionFromFields() error = %v", err)
	}
	if sub.SongID != 10 || sub.Mode != 1 || sub.Score != 500 || sub.Avatar != 3 {
		t.Errorf("Unexpected submission %+v", sub)
	}

	delete(f, "score")
	if _, err := SubmissionFromFields(f); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("Expected ErrInvalidResult for missing score, got %v", err)
	}
}

func TestSubmit_FirstResultRanksFirst(t *testing.T) {
	e, store, _ := newEngine(t)
	id := store.addPlayer(1, "alice", "dev-a")

	rank, ranked, err := e.Submit(context.Background(), id, submission(10, 1, 500))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !ranked || rank != 1 {
		t.Errorf("Expected rank 1, got %d (ranked=%v)", rank, ranked)
	}

	a := store.accounts[1]
	if a.MobileDelta != 500 || a.TotalDelta != 500 || a.ArcadeDelta != 0 {
		t.Errorf("Expected mobile/total delta 500, got %+v", a)
	}
}

func TestSubmit_LowerScoreChangesNothing(t *testing.T) {
	e, store, _ := newEngine(t)
	id := store.addPlayer(1, "alice", "dev-a")
	ctx := context.Background()

	if _, _, err := e.Submit(ctx, id, submission(10, 1, 500)); err != nil {
		t.Fatal(err)
	}
	rank, ranked, err := e.Submit(ctx, id, submission(10, 1, 300))
	if err != nil {
		t.Fatal(err)
	}

	if !ranked || rank != 1 {
		t.Errorf("Expected rank 1, got %d", rank)
	}
	if len(store.results) != 1 || store.results[0].Score != 500 {
		t.Errorf("Expected single row with score 500, got %+v", store.results)
	}
	if store.accounts[1].TotalDelta != 500 {
		t.Errorf("Expected total delta to stay 500, got %d", store.accounts[1].TotalDelta)
	}
}

func TestSubmit_HigherScoreAddsDifference(t *testing.T) {
	e, store, _ := newEngine(t)
	id := store.addPlayer(1, "alice", "dev-a")
	ctx := context.Background()

	e.Submit(ctx, id, submission(10, 11, 500))
	e.Submit(ctx, id, submission(10, 11, 800))

	a := store.accounts[1]
	if a.ArcadeDelta != 800 || a.TotalDelta != 800 || a.MobileDelta != 0 {
		t.Errorf("Expected arcade/total delta 800, got %+v", a)
	}
}

func TestSubmit_RankOrder(t *testing.T) {
	e, store, _ := newEngine(t)
	alice := store.addPlayer(1, "alice", "dev-a")
	bob := store.addPlayer(2, "bob", "dev-b")
	ctx := context.Background()

	e.Submit(ctx, alice, submission(10, 1, 500))
	rank, _, _ := e.Submit(ctx, bob, submission(10, 1, 900))
	if rank != 1 {
		t.Errorf("Expected bob at rank 1, got %d", rank)
	}

	// tie goes to the earlier row
	carol := store.addPlayer(3, "carol", "dev-c")
	rank, _, _ = e.Submit(ctx, carol, submission(10, 1, 500))
	if rank != 3 {
		t.Errorf("Expected carol at rank 3, got %d", rank)
	}
}

func TestSubmit_InvalidatesCache(t *testing.T) {
	e, store, cache := newEngine(t)
	id := store.addPlayer(1, "alice", "dev-a")
	ctx := context.Background()

	cache.Set(ctx, rankcache.SongKey(10, 1), []models.RankRecord{{ID: 99}}, rankcache.NoExpiry)
	if _, _, err := e.Submit(ctx, id, submission(10, 1, 500)); err != nil {
		t.Fatal(err)
	}
	if _, found := cache.Get(ctx, rankcache.SongKey(10, 1)); found {
		t.Error("Expected song board cache to be cleared after a write")
	}
}

// failingStore refuses every result write.
type failingStore struct {
	*memStore
}

func (f failingStore) SubmitResult(ctx context.Context, r *models.Result, delta func(old, new int64) models.Delta) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestSubmit_InvalidatesCacheOnFailure(t *testing.T) {
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	id := store.addPlayer(1, "alice", "dev-a")
	cache := rankcache.NewMemory(time.Minute)
	e := NewEngine(failingStore{store}, cache, cat, 1)
	ctx := context.Background()

	cache.Set(ctx, rankcache.SongKey(10, 1), []models.RankRecord{{ID: 99}}, rankcache.NoExpiry)
	if _, _, err := e.Submit(ctx, id, submission(10, 1, 500)); err == nil {
		t.Fatal("Expected the failed write to be reported")
	}
	if _, found := cache.Get(ctx, rankcache.SongKey(10, 1)); found {
		t.Error("Expected song board cache to be cleared after a failed write")
	}
}

func TestSubmit_DeviceUpdate(t *testing.T) {
	testCases := []struct {
		name     string
		song     int
		mode     int
		wantCoin int
	}{
		{"regular song earns coin", 10, 1, 11},
		{"event song in mobile mode earns nothing", 700, 2, 10},
		{"event song in arcade mode earns coin", 700, 11, 11},
		{"song 615 earns coin", 615, 1, 11},
		{"song 616 earns nothing", 616, 1, 10},
		{"song 1023 earns nothing", 1023, 1, 10},
		{"song 1024 earns coin", 1024, 1, 11},
		{"mode -1 earns coin", 700, -1, 11},
		{"mode 0 earns nothing", 700, 0, 10},
		{"mode 3 earns nothing", 700, 3, 10},
		{"mode 4 earns coin", 700, 4, 11},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, store, _ := newEngine(t)
			id := store.addPlayer(1, "alice", "dev-a")

			if _, _, err := e.Submit(context.Background(), id, submission(tc.song, tc.mode, 100)); err != nil {
				t.Fatal(err)
			}

			w := store.wallets["dev-a"]
			if w.Coin != tc.wantCoin {
				t.Errorf("Expected coin %d, got %d", tc.wantCoin, w.Coin)
			}
			if w.Level != 12 || w.Avatar != 7 {
				t.Errorf("Expected lvl 12 avatar 7, got lvl %d avatar %d", w.Level, w.Avatar)
			}
			// empty stage list falls back to the starter set, plus unlocks at lvl 12
			if !slices.Contains(w.Stages, 1) || !slices.Contains(w.Stages, 11) || !slices.Contains(w.Stages, 12) || slices.Contains(w.Stages, 13) {
				t.Errorf("Unexpected stages %v", w.Stages)
			}
			if !slices.IsSorted(w.Stages) {
				t.Errorf("Expected sorted stages, got %v", w.Stages)
			}
		})
	}
}

func TestSubmit_Anonymous(t *testing.T) {
	e, store, _ := newEngine(t)
	store.wallets["dev-x"] = &models.Wallet{DeviceID: "dev-x", Coin: 5, Stages: []int{1}}
	id := &identity.Identity{DeviceID: "dev-x", Device: &models.Device{DeviceID: "dev-x"}}

	_, ranked, err := e.Submit(context.Background(), id, submission(10, 1, 500))
	if err != nil {
		t.Fatal(err)
	}
	if ranked {
		t.Error("Expected anonymous play to be unranked")
	}
	if len(store.results) != 0 {
		t.Error("Expected no stored result for anonymous play")
	}
	if store.wallets["dev-x"].Coin != 6 {
		t.Errorf("Expected coin 6, got %d", store.wallets["dev-x"].Coin)
	}
}

func TestSubmit_BadBlob(t *testing.T) {
	e, store, _ := newEngine(t)
	id := store.addPlayer(1, "alice", "dev-a")

	sub := submission(10, 1, 500)
	sub.Stats = `"not a number",1`
	if _, _, err := e.Submit(context.Background(), id, sub); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("Expected ErrInvalidResult, got %v", err)
	}
	if len(store.results) != 0 {
		t.Error("Expected nothing written for an invalid blob")
	}
}

func TestIndividual(t *testing.T) {
	e, store, _ := newEngine(t)
	alice := store.addPlayer(1, "alice", "dev-a")
	bob := store.addPlayer(2, "bob", "dev-b")
	ctx := context.Background()

	e.Submit(ctx, alice, submission(10, 1, 500))
	e.Submit(ctx, bob, submission(10, 1, 900))

	page, err := e.Individual(ctx, alice, 10, 1, 0)
	if err != nil {
		t.Fatalf("Individual() error = %v", err)
	}
	if page.TotalCount != 2 || len(page.RankingList) != 2 {
		t.Fatalf("Expected 2 entries, got %+v", page)
	}
	if page.RankingList[0].Username != "bob" || page.RankingList[0].Position != 1 {
		t.Errorf("Expected bob first, got %+v", page.RankingList[0])
	}
	if page.PlayerRanking.Position != 2 || page.PlayerRanking.Score != 500 {
		t.Errorf("Expected viewer at position 2, got %+v", page.PlayerRanking)
	}

	empty, _ := e.Individual(ctx, alice, 10, 1, 1)
	if len(empty.RankingList) != 0 || empty.PlayerRanking.Position != 2 {
		t.Errorf("Expected empty second page with viewer still found, got %+v", empty)
	}
}

func TestIndividual_Validation(t *testing.T) {
	e, _, _ := newEngine(t)
	id := &identity.Identity{DeviceID: "d", Device: &models.Device{}}

	testCases := []struct {
		song int
		mode int
	}{
		{-1, 1}, {1000, 1}, {10, 0}, {10, 4}, {10, 14},
	}
	for _, tc := range testCases {
		if _, err := e.Individual(context.Background(), id, tc.song, tc.mode, 0); !errors.Is(err, ErrInvalidBoard) {
			t.Errorf("Individual(%d, %d): expected ErrInvalidBoard, got %v", tc.song, tc.mode, err)
		}
	}
}

func TestIndividual_GuestViewer(t *testing.T) {
	e, _, _ := newEngine(t)
	id := &identity.Identity{DeviceID: "d", Device: &models.Device{Title: 5, Avatar: 6}}

	page, err := e.Individual(context.Background(), id, 10, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := models.RankEntry{Position: -1, Username: GuestName, Score: 0, Title: 5, Avatar: 6}
	if page.PlayerRanking != want {
		t.Errorf("Expected %+v, got %+v", want, page.PlayerRanking)
	}
	if page.RankingList == nil {
		t.Error("Expected empty, non-nil ranking list")
	}
}

func TestTotal(t *testing.T) {
	e, store, cache := newEngine(t)
	alice := store.addPlayer(1, "alice", "dev-a")
	bob := store.addPlayer(2, "bob", "dev-b")
	ctx := context.Background()

	e.Submit(ctx, alice, submission(10, 1, 500))
	e.Submit(ctx, bob, submission(10, 11, 900))

	testCases := []struct {
		category  int
		wantCount int
		wantFirst string
	}{
		{models.CategoryTotal, 2, "bob"},
		{models.CategoryMobile, 1, "alice"},
		{models.CategoryArcade, 1, "bob"},
	}
	for _, tc := range testCases {
		page, err := e.Total(ctx, alice, tc.category, 0)
		if err != nil {
			t.Fatalf("Total(%d) error = %v", tc.category, err)
		}
		if page.TotalCount != tc.wantCount || page.RankingList[0].Username != tc.wantFirst {
			t.Errorf("Total(%d) = %+v", tc.category, page)
		}
		if _, found := cache.Get(ctx, rankcache.TotalKey(tc.category)); !found {
			t.Errorf("Expected category %d board cached", tc.category)
		}
	}

	if _, err := e.Total(ctx, alice, 3, 0); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("Expected ErrInvalidCategory, got %v", err)
	}
}

// ttlCache remembers the expiry each key was stored with.
type ttlCache struct {
	*rankcache.Memory
	ttls map[string]time.Duration
}

func (c *ttlCache) Set(ctx context.Context, key string, records []models.RankRecord, ttl time.Duration) {
	c.ttls[key] = ttl
	c.Memory.Set(ctx, key, records, ttl)
}

func TestBoardExpiry(t *testing.T) {
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	alice := store.addPlayer(1, "alice", "dev-a")
	cache := &ttlCache{Memory: rankcache.NewMemory(time.Minute), ttls: map[string]time.Duration{}}
	e := NewEngine(store, cache, cat, 1)
	ctx := context.Background()

	if _, _, err := e.Submit(ctx, alice, submission(10, 1, 500)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Total(ctx, alice, models.CategoryTotal, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Individual(ctx, alice, 10, 1, 0); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		key      string
		expected time.Duration
	}{
		{rankcache.TotalKey(models.CategoryTotal), 120 * time.Second},
		{rankcache.SongKey(10, 1), rankcache.NoExpiry},
	}
	for _, tc := range testCases {
		ttl, ok := cache.ttls[tc.key]
		if !ok {
			t.Errorf("Expected %s to be cached", tc.key)
			continue
		}
		if ttl != tc.expected {
			t.Errorf("Expected %s to expire after %v, got %v", tc.key, tc.expected, ttl)
		}
	}
}
