// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/taiyo/catalog"
	"github.com/danielhkuo/taiyo/fields"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/rankcache"
)

// PageSize is the number of entries per leaderboard page.
const PageSize = 50

// TotalTTL is how long a category leaderboard stays cached.
const TotalTTL = 120 * time.Second

// GuestName is shown for a viewer without an account.
const GuestName = "Guest (Not Ranked)"

var (
	ErrInvalidResult   = errors.New("invalid result data")
	ErrInvalidBoard    = errors.New("invalid song_id or mode")
	ErrInvalidCategory = errors.New("invalid mode")
)

var (
	mobileModes = []int{1, 2, 3}
	arcadeModes = []int{11, 12, 13}
)

// Store is the persistence the engine needs.
type Store interface {
	// SubmitResult writes r for its account and returns the id of the
	// account's row for (song, mode). delta is applied to the account's
	// counters in the same transaction.
	SubmitResult(ctx context.Context, r *models.Result, delta func(old, new int64) models.Delta) (int64, error)
	SongRecords(ctx context.Context, songID, mode int) ([]models.RankRecord, error)
	CategoryRecords(ctx context.Context, category int) ([]models.RankRecord, error)
	AccountsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Account, error)
	UpdateWallet(ctx context.Context, deviceID string, merged bool, fn func(*models.Wallet) error) error
}

// ScoreDelta returns the counter changes for replacing old with new in mode.
func ScoreDelta(mode int, old, new int64) models.Delta {
	d := new - old
	switch {
	case slices.Contains(mobileModes, mode):
		return models.Delta{Mobile: d, Total: d}
	case slices.Contains(arcadeModes, mode):
		return models.Delta{Arcade: d, Total: d}
	}
	return models.Delta{}
}

// ParseBlob decodes a client list blob such as `12,3,"x"`. The client
// omits the surrounding brackets.
func ParseBlob(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader("[" + s + "]"))
	dec.UseNumber()

	var v []any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidResult)
	}
	return v, nil
}

// Submission is one play result as sent by the client.
type Submission struct {
	SongID     int
	Mode       int
	Avatar     int
	Item       int
	Score      int64
	Stats      string
	HighScore  string
	PlayResult string
	OS         string
	OSVersion  string
	Version    string
}

// SubmissionFromFields reads a result.php payload.
func SubmissionFromFields(f fields.Fields) (Submission, error) {
	s := Submission{
		Stats:      f.Get("stts"),
		HighScore:  f.Get("high_score"),
		PlayResult: f.Get("play_rslt"),
		OS:         f.Get("os"),
		OSVersion:  f.Get("os_ver"),
		Version:    f.Get("ver"),
	}
	if s.Stats == "" || s.HighScore == "" || s.PlayResult == "" {
		return Submission{}, fmt.Errorf("%w: missing result blob", ErrInvalidResult)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"id", &s.SongID},
		{"mode", &s.Mode},
		{"avatar", &s.Avatar},
		{"item", &s.Item},
	}
	for _, it := range ints {
		v, err := f.Int(it.key)
		if err != nil {
			return Submission{}, fmt.Errorf("%w: %s", ErrInvalidResult, it.key)
		}
		*it.dst = v
	}

	score, err := f.Int("score")
	if err != nil {
		return Submission{}, fmt.Errorf("%w: score", ErrInvalidResult)
	}
	s.Score = int64(score)
	return s, nil
}

// Engine records results and serves leaderboards.
type Engine struct {
	store      Store
	cache      rankcache.Cache
	catalog    *catalog.Catalog
	coinReward int
}

func NewEngine(store Store, cache rankcache.Cache, cat *catalog.Catalog, coinReward int) *Engine {
	return &Engine{store: store, cache: cache, catalog: cat, coinReward: coinReward}
}

// Submit records a play. For a linked account it returns the 1-based rank
// of the account's row on the song board; anonymous plays are not ranked.
// The device's level, avatar, unlocked stages and coins are updated either way.
func (e *Engine) Submit(ctx context.Context, id *identity.Identity, sub Submission) (rank int, ranked bool, err error) {
	stts, err := ParseBlob(sub.Stats)
	if err != nil {
		return 0, false, err
	}
	highScore, err := ParseBlob(sub.HighScore)
	if err != nil {
		return 0, false, err
	}
	playResult, err := ParseBlob(sub.PlayResult)
	if err != nil {
		return 0, false, err
	}
	exp, err := experience(stts)
	if err != nil {
		return 0, false, err
	}

	// The song board is dropped on both sides of the write, whatever
	// the outcome.
	key := rankcache.SongKey(sub.SongID, sub.Mode)
	e.cache.Delete(ctx, key)
	defer e.cache.Delete(ctx, key)

	if accountID, ok := id.AccountID(); ok {
		r := &models.Result{
			DeviceID:   id.DeviceID,
			UserID:     accountID,
			Stats:      mustJSON(stts),
			SongID:     sub.SongID,
			Mode:       sub.Mode,
			Avatar:     sub.Avatar,
			Score:      sub.Score,
			HighScore:  mustJSON(highScore),
			PlayResult: mustJSON(playResult),
			Item:       sub.Item,
			OS:         sub.OS,
			OSVersion:  sub.OSVersion,
			Version:    sub.Version,
		}
		rowID, err := e.store.SubmitResult(ctx, r, func(old, new int64) models.Delta {
			return ScoreDelta(sub.Mode, old, new)
		})
		if err != nil {
			return 0, false, fmt.Errorf("failed to submit result: %w", err)
		}

		records, err := e.store.SongRecords(ctx, sub.SongID, sub.Mode)
		if err != nil {
			return 0, false, fmt.Errorf("failed to load song board: %w", err)
		}
		for i, rec := range records {
			if rec.ID == rowID {
				rank, ranked = i+1, true
				break
			}
		}
	}

	coinMP := 1
	if id.Account != nil {
		coinMP = id.Account.CoinMP
	}
	earnsCoin := !(sub.SongID >= 616 && sub.SongID < 1024 && sub.Mode >= 0 && sub.Mode < 4)

	err = e.store.UpdateWallet(ctx, id.DeviceID, false, func(w *models.Wallet) error {
		w.Level = exp
		w.Avatar = sub.Avatar
		stages := slices.Clone(w.Stages)
		if len(stages) == 0 {
			stages = slices.Clone(e.catalog.StartStages)
		}
		w.Stages = identity.SortedSet(append(stages, e.catalog.UnlockedAt(exp)...))
		if earnsCoin {
			w.Coin += e.coinReward * coinMP
		}
		return nil
	})
	if errors.Is(err, models.ErrNotFound) {
		slog.Debug("result from unknown device", "device_id", id.DeviceID)
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to update device after result: %w", err)
	}

	return rank, ranked, nil
}

// Individual returns one page of a song board.
func (e *Engine) Individual(ctx context.Context, id *identity.Identity, songID, mode, page int) (*models.RankingPage, error) {
	if songID < 0 || songID >= 1000 || !(slices.Contains(mobileModes, mode) || slices.Contains(arcadeModes, mode)) {
		return nil, ErrInvalidBoard
	}

	records, err := rankcache.Fetch(ctx, e.cache, rankcache.SongKey(songID, mode), rankcache.NoExpiry, func() ([]models.RankRecord, error) {
		return e.store.SongRecords(ctx, songID, mode)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load song board: %w", err)
	}
	return e.page(ctx, id, records, page)
}

// Total returns one page of a category board: 0 total, 1 mobile, 2 arcade.
func (e *Engine) Total(ctx context.Context, id *identity.Identity, category, page int) (*models.RankingPage, error) {
	if category != models.CategoryTotal && category != models.CategoryMobile && category != models.CategoryArcade {
		return nil, ErrInvalidCategory
	}

	records, err := rankcache.Fetch(ctx, e.cache, rankcache.TotalKey(category), TotalTTL, func() ([]models.RankRecord, error) {
		return e.store.CategoryRecords(ctx, category)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load category board: %w", err)
	}
	return e.page(ctx, id, records, page)
}

func (e *Engine) page(ctx context.Context, id *identity.Identity, records []models.RankRecord, page int) (*models.RankingPage, error) {
	start := page * PageSize
	end := start + PageSize

	var ids []int64
	for i := start; i < end && i < len(records); i++ {
		if i >= 0 {
			ids = append(ids, records[i].AccountID)
		}
	}
	accounts := map[int64]*models.Account{}
	if len(ids) > 0 {
		var err error
		accounts, err = e.store.AccountsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load ranked accounts: %w", err)
		}
	}

	out := &models.RankingPage{
		RankingList:   []models.RankEntry{},
		PlayerRanking: defaultViewer(id),
		TotalCount:    len(records),
	}
	viewerID, linked := id.AccountID()

	for i, rec := range records {
		if i >= start && i < end {
			if a := accounts[rec.AccountID]; a != nil {
				out.RankingList = append(out.RankingList, models.RankEntry{
					Position: i + 1,
					Username: a.Username,
					Score:    rec.Score,
					Title:    a.Title,
					Avatar:   rec.Avatar,
				})
			}
		}
		if linked && rec.AccountID == viewerID {
			out.PlayerRanking = models.RankEntry{
				Position: i + 1,
				Username: id.Account.Username,
				Score:    rec.Score,
				Title:    id.Account.Title,
				Avatar:   id.Account.Avatar,
			}
		}
	}
	return out, nil
}

func defaultViewer(id *identity.Identity) models.RankEntry {
	entry := models.RankEntry{Username: GuestName, Position: -1}
	if id.Device != nil {
		entry.Title = id.Device.Title
		entry.Avatar = id.Device.Avatar
	}
	if id.Account != nil {
		entry.Username = id.Account.Username
		entry.Title = id.Account.Title
	}
	return entry
}

// experience reads the player's exp from the first stts entry.
func experience(stts []any) (int, error) {
	if len(stts) == 0 {
		return 0, fmt.Errorf("%w: empty stts", ErrInvalidResult)
	}
	n, ok := stts[0].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: stts[0] is not a number", ErrInvalidResult)
	}
	if v, err := n.Int64(); err == nil {
		return int(v), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: stts[0]: %v", ErrInvalidResult, err)
	}
	return int(f), nil
}

func mustJSON(v []any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
