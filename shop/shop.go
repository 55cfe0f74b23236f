// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package shop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielhkuo/taiyo/catalog"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/models"
)

// Type is the shop tab an item belongs to.
type Type int

const (
	TypeStage  Type = 0
	TypeAvatar Type = 1
	TypeItem   Type = 2
	TypeFMax   Type = 3
	TypeExtra  Type = 4
)

// Sentinel stages marking the FMAX and EXTRA packs as owned.
const (
	fmaxSentinel  = 700
	extraSentinel = 980
)

// Shop listing ranges, half open.
const (
	stageLow          = 100
	stageHigh         = 615
	avatarLow         = 15
	avatarHigh        = 173
	avatarHighRelease = 267
	itemCount         = 10
)

// Rejection is a purchase or lookup refused with a player-facing message.
type Rejection struct {
	Message string
	Status  int
}

func (r *Rejection) Error() string { return r.Message }

var (
	ErrNotFound          = &Rejection{Message: "Item not found", Status: http.StatusOK}
	ErrInsufficientCoins = &Rejection{Message: "Insufficient coins.", Status: http.StatusBadRequest}
	ErrNoPlayer          = &Rejection{Message: "User and device not found", Status: http.StatusNotFound}
)

type Prices struct {
	Stage  int
	Avatar int
	Item   int
	FMax   int
	Extra  int
}

// Wallets persists a device wallet under a row lock. With merged set, the
// wallet's stages and avatars are the linked account's union.
type Wallets interface {
	UpdateWallet(ctx context.Context, deviceID string, merged bool, fn func(*models.Wallet) error) error
}

// Owner resolves what a caller already owns.
type Owner interface {
	Owned(ctx context.Context, id *identity.Identity, capped bool) (stages, avatars []int, err error)
}

// Release describes the FMAX release state.
type Release interface {
	Version() string
	Known() bool
	Present() bool
	ChangelogHTML() string
}

type Engine struct {
	wallets Wallets
	owner   Owner
	catalog *catalog.Catalog
	prices  Prices
	release Release
}

func NewEngine(wallets Wallets, owner Owner, cat *catalog.Catalog, prices Prices, rel Release) *Engine {
	return &Engine{wallets: wallets, owner: owner, catalog: cat, prices: prices, release: rel}
}

// Price returns the cost of an item, or 0 when the item does not exist.
// Stages with six difficulty levels cost double.
func (e *Engine) Price(t Type, id int) int {
	switch t {
	case TypeStage:
		s, ok := e.catalog.Song(id)
		if !ok {
			return 0
		}
		if len(s.DifficultyLevels) == 6 {
			return e.prices.Stage * 2
		}
		return e.prices.Stage
	case TypeAvatar:
		if _, ok := e.catalog.Avatar(id); ok {
			return e.prices.Avatar
		}
	case TypeItem:
		if _, ok := e.catalog.Item(id); ok {
			return e.prices.Item
		}
	case TypeFMax:
		return e.prices.FMax
	case TypeExtra:
		return e.prices.Extra
	}
	return 0
}

// OwnedMessage returns the "already owned" message for an item, or "".
func OwnedMessage(t Type, id int, stages, avatars []int) string {
	const suffix = " already owned. Exit the shop and it will be added to the game."
	switch {
	case t == TypeStage && slices.Contains(stages, id):
		return "Stage" + suffix
	case t == TypeAvatar && slices.Contains(avatars, id):
		return "Avatar" + suffix
	case t == TypeFMax && slices.Contains(stages, fmaxSentinel):
		return "FMAX" + suffix
	case t == TypeExtra && slices.Contains(stages, extraSentinel):
		return "EXTRA" + suffix
	}
	return ""
}

// Apply grants a purchased item to the wallet. Items are queued for
// delivery on the next sync.
func Apply(w *models.Wallet, t Type, id int) {
	switch t {
	case TypeStage:
		w.Stages = identity.SortedSet(append(w.Stages, id))
	case TypeAvatar:
		w.Avatars = identity.SortedSet(append(w.Avatars, id))
	case TypeItem:
		w.Items = append(w.Items, id)
	case TypeFMax:
		w.Stages = identity.SortedSet(append(w.Stages, rangeInts(615, 926)...))
	case TypeExtra:
		w.Stages = identity.SortedSet(append(w.Stages, rangeInts(926, 985)...))
	}
}

// Purchase buys an item for the caller's device and returns the new coin
// balance. Rejections leave the wallet untouched.
func (e *Engine) Purchase(ctx context.Context, id *identity.Identity, t Type, itemID int) (int, error) {
	price := e.Price(t, itemID)
	if price == 0 {
		return 0, ErrNotFound
	}
	if id == nil || id.Device == nil {
		return 0, ErrNoPlayer
	}

	var coin int
	err := e.wallets.UpdateWallet(ctx, id.DeviceID, true, func(w *models.Wallet) error {
		if msg := OwnedMessage(t, itemID, w.Stages, w.Avatars); msg != "" {
			return &Rejection{Message: msg, Status: http.StatusBadRequest}
		}
		if price > w.Coin {
			return ErrInsufficientCoins
		}
		w.Coin -= price
		Apply(w, t, itemID)
		coin = w.Coin
		return nil
	})
	if errors.Is(err, models.ErrNotFound) {
		return 0, ErrNoPlayer
	}
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			return 0, rej
		}
		return 0, fmt.Errorf("failed to purchase item: %w", err)
	}
	return coin, nil
}

// PlayerData lists what the caller can still buy.
func (e *Engine) PlayerData(ctx context.Context, id *identity.Identity) (*models.ShopPlayerData, error) {
	if id == nil || id.Device == nil {
		return nil, ErrNoPlayer
	}
	stages, avatars, err := e.owner.Owned(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlements: %w", err)
	}

	data := &models.ShopPlayerData{
		Coin:       id.Device.Coin,
		StageList:  []int{},
		AvatarList: []int{},
		ItemList:   rangeInts(1, itemCount+1),
	}
	for s := stageLow; s < stageHigh; s++ {
		if !e.catalog.ExcludedFromShop(s) && !slices.Contains(stages, s) {
			data.StageList = append(data.StageList, s)
		}
	}
	high := avatarHigh
	if e.release.Known() {
		high = avatarHighRelease
	}
	for a := avatarLow; a < high; a++ {
		if !slices.Contains(avatars, a) {
			data.AvatarList = append(data.AvatarList, a)
		}
	}

	present := e.release.Present()
	data.FMaxPurchased = present && slices.Contains(stages, fmaxSentinel)
	data.ExtraPurchased = present && slices.Contains(stages, extraSentinel)
	return data, nil
}

// ItemData describes one item for the shop detail pane.
func (e *Engine) ItemData(t Type, itemID int) (*models.ShopItemData, error) {
	data := &models.ShopItemData{Price: e.Price(t, itemID)}

	switch t {
	case TypeStage:
		s, ok := e.catalog.Song(itemID)
		if !ok {
			return nil, ErrNotFound
		}
		levels := make([]string, len(s.DifficultyLevels))
		for i, l := range s.DifficultyLevels {
			levels[i] = strconv.Itoa(l)
		}
		data.PropertyFirst = s.NameEn
		data.PropertySecond = s.AuthorEn
		data.PropertyThird = strings.Join(levels, "/")
	case TypeAvatar:
		a, ok := e.catalog.Avatar(itemID)
		if !ok {
			return nil, ErrNotFound
		}
		data.PropertyFirst, data.PropertySecond = a.Name, a.Effect
	case TypeItem:
		it, ok := e.catalog.Item(itemID)
		if !ok {
			return nil, ErrNotFound
		}
		data.PropertyFirst, data.PropertySecond = it.Name, it.Effect
	case TypeFMax:
		data.PropertyFirst = e.release.Version()
		data.PropertySecond = e.release.ChangelogHTML()
	case TypeExtra:
	default:
		return nil, ErrNotFound
	}
	return data, nil
}

func rangeInts(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
