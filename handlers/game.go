// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/catalog"
	"github.com/danielhkuo/taiyo/gamexml"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/policy"
	"github.com/danielhkuo/taiyo/store"
)

var errAlreadyClaimed = errors.New("login bonus already claimed")

// GameHandler serves the launch-time game endpoints.
type GameHandler struct {
	Deps
}

func NewGameHandler(d Deps) *GameHandler {
	return &GameHandler{Deps: d}
}

// assetLinks are the download locations handed to the client.
type assetLinks struct {
	Model gamexml.Pak
	Tune  gamexml.Pak
	Skin  gamexml.Pak
	M4A   string
	Stage string
}

// verifiedBind reports whether the caller's account has a verified bind.
func (h *GameHandler) verifiedBind(ctx context.Context, id *identity.Identity) (bool, error) {
	accountID, ok := id.AccountID()
	if !ok {
		return false, nil
	}
	b, err := h.Store.Bind(ctx, accountID)
	if err != nil {
		return false, err
	}
	return b != nil && b.IsVerified, nil
}

// assets builds the pak and folder links. With binds off the device id
// is the download token; with binds on, only a verified caller gets
// tokenized links and everyone else gets the public fallback paks.
func (h *GameHandler) assets(ctx context.Context, id *identity.Identity, verified bool) (assetLinks, error) {
	host := h.Config.BaseURL()

	var token string
	switch {
	case h.Policy.Config().Mode == policy.ModeNone:
		token = id.DeviceID
	case verified && id.Device != nil:
		if id.Device.BindToken != nil && *id.Device.BindToken != "" {
			token = *id.Device.BindToken
			break
		}
		t, err := h.rotateBindToken(ctx, id)
		if err != nil {
			return assetLinks{}, err
		}
		token = t
	}

	if token == "" {
		return assetLinks{
			Model: gamexml.Pak{Date: "1", URL: host + "files/gc/model1.pak"},
			Tune:  gamexml.Pak{Date: "1", URL: host + "files/gc/tuneFile1.pak"},
			Skin:  gamexml.Pak{Date: "1", URL: host + "files/gc/skin1.pak"},
			M4A:   host,
			Stage: host,
		}, nil
	}

	base := host + "files/gc2/" + token + "/"
	return assetLinks{
		Model: gamexml.Pak{Date: h.Config.ModelDate, URL: base + "pak/model" + h.Config.ModelDate + ".pak"},
		Tune:  gamexml.Pak{Date: h.Config.TuneFileDate, URL: base + "pak/tuneFile" + h.Config.TuneFileDate + ".pak"},
		Skin:  gamexml.Pak{Date: h.Config.SkinDate, URL: base + "pak/skin" + h.Config.SkinDate + ".pak"},
		M4A:   base + "audio/",
		Stage: base + "stage/",
	}, nil
}

func (h *GameHandler) rotateBindToken(ctx context.Context, id *identity.Identity) (string, error) {
	token, err := auth.GenerateBindToken()
	if err != nil {
		return "", err
	}
	if err := h.Store.SetBindToken(ctx, id.DeviceID, token); err != nil {
		return "", err
	}
	if id.Device != nil {
		id.Device.BindToken = &token
	}
	return token, nil
}

func (l assetLinks) write(b *gamexml.Builder) *gamexml.Builder {
	return b.Element("model_pak", l.Model).
		Element("tuneFile_pak", l.Tune).
		Element("skin_pak", l.Skin).
		Element("m4a_path", l.M4A).
		Element("stage_path", l.Stage)
}

// entitlements returns the coins, stages and avatars a launch reply shows.
func (h *GameHandler) entitlements(ctx context.Context, id *identity.Identity) (coin int, stages, avatars []int, err error) {
	switch {
	case id.Account != nil:
		stages, avatars, err = h.Resolver.Entitlements(ctx, id.Account.ID, true)
		if err != nil {
			return 0, nil, nil, err
		}
		if id.Device != nil {
			coin = id.Device.Coin
		}
	case id.Device != nil:
		coin = id.Device.Coin
		stages, avatars = id.Device.Stages, id.Device.Avatars
		if len(stages) == 0 {
			stages = h.Catalog.StartStages
		}
		if len(avatars) == 0 {
			avatars = h.Catalog.StartAvatars
		}
	default:
		coin = h.Config.StartCoin
		stages, avatars = h.Catalog.StartStages, h.Catalog.StartAvatars
	}
	return coin, stages, avatars, nil
}

func loginBonus(cat *catalog.Catalog, nowCount int) gamexml.LoginBonus {
	lb := gamexml.LoginBonus{LastCount: cat.LoginBonus.LastCount, NowCount: nowCount}
	for _, r := range cat.LoginBonus.Rewards {
		lb.Rewards = append(lb.Rewards, gamexml.Reward{Count: r.Count, CntType: r.CntType, CntID: r.CntID})
	}
	return lb
}

// Start handles GET /start.php
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)

	verified, err := h.verifiedBind(ctx, id)
	if err != nil {
		slog.Error("failed to load bind", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to load account."))
		return
	}
	if verified {
		if _, err := h.rotateBindToken(ctx, id); err != nil {
			slog.Error("failed to rotate bind token", "device_id", id.DeviceID, "error", err)
			writeXML(w, gamexml.ServerError("Failed to refresh download token."))
			return
		}
	}

	notice, err := gamexml.ReadNotice(h.Config.NoticePath)
	if err != nil {
		slog.Warn("ignoring maintenance notice", "path", h.Config.NoticePath, "error", err)
		notice = nil
	}

	links, err := h.assets(ctx, id, verified)
	if err != nil {
		slog.Error("failed to build asset links", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to build asset links."))
		return
	}

	nowCount := 1
	if id.Device != nil {
		nowCount = id.Device.DailyDay
		if daysBetween(id.Device.DailyTimestamp, h.now()) >= 1 {
			nowCount = nextDay(id.Device.DailyDay, h.Catalog.LoginBonus.LastCount)
		}
	} else if err := h.createDevice(ctx, id.DeviceID); err != nil {
		slog.Error("failed to create device", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to create device."))
		return
	}

	coin, stages, avatars, err := h.entitlements(ctx, id)
	if err != nil {
		slog.Error("failed to load entitlements", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to load entitlements."))
		return
	}

	code := gamexml.CodeOK
	if notice != nil {
		code = notice.Code
	}
	b := gamexml.NewResponse().
		Element("code", code).
		Element("login_bonus", loginBonus(h.Catalog, nowCount))
	if notice != nil {
		b.Element("message", notice.Message)
	}
	links.write(b).
		Element("my_coin", coin).
		Avatars(avatars).
		Stages(stages)
	if id.Account != nil {
		b.Element("taito_id", id.Account.Username).
			Element("sid", id.Account.ID).
			StageZero()
	}

	out, err := b.Bytes()
	if err != nil {
		slog.Error("failed to encode start response", "error", err)
		writeXML(w, gamexml.ServerError("Failed to encode response."))
		return
	}
	writeXML(w, out)
}

// Sync handles GET and POST /sync.php
func (h *GameHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)

	verified, err := h.verifiedBind(ctx, id)
	if err != nil {
		slog.Error("failed to load bind", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to load account."))
		return
	}
	links, err := h.assets(ctx, id, verified)
	if err != nil {
		slog.Error("failed to build asset links", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to build asset links."))
		return
	}

	coin, stages, avatars, err := h.entitlements(ctx, id)
	if err != nil {
		slog.Error("failed to load entitlements", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to load entitlements."))
		return
	}

	var items []int
	if id.Device != nil {
		items, err = h.Store.TakePendingItems(ctx, id.DeviceID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Error("failed to take pending items", "device_id", id.DeviceID, "error", err)
			writeXML(w, gamexml.ServerError("Failed to deliver items."))
			return
		}
	}

	b := links.write(gamexml.NewResponse().Element("code", gamexml.CodeOK)).
		Element("my_coin", coin)
	for _, item := range items {
		b.Element("add_item", gamexml.AddItem{ID: item, Num: 9})
	}
	b.Avatars(avatars).Stages(stages)
	if id.Account != nil {
		b.Element("taito_id", id.Account.Username).
			StageZero().
			Element("friend_num", 9)
	}

	out, err := b.Bytes()
	if err != nil {
		slog.Error("failed to encode sync response", "error", err)
		writeXML(w, gamexml.ServerError("Failed to encode response."))
		return
	}
	if len(items) > 0 {
		slog.Info("delivered pending items", "device_id", id.DeviceID, "count", len(items))
	}
	writeXML(w, out)
}

// LoginBonus handles GET /login_bonus.php
func (h *GameHandler) LoginBonus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)
	now := h.now()

	if id.Device == nil {
		if err := h.createDevice(ctx, id.DeviceID); err != nil {
			slog.Error("failed to create device", "device_id", id.DeviceID, "error", err)
			writeXML(w, gamexml.ServerError("Failed to create device."))
			return
		}
		writeXMLString(w, gamexml.OK)
		return
	}

	var day int
	err := h.Store.UpdateWallet(ctx, id.DeviceID, true, func(wl *models.Wallet) error {
		if daysBetween(wl.DailyTimestamp, now) < 1 {
			return errAlreadyClaimed
		}
		day = nextDay(wl.DailyDay, h.Catalog.LoginBonus.LastCount)
		if reward, ok := h.Catalog.RewardFor(day); ok {
			switch reward.CntType {
			case catalog.RewardStage:
				wl.Stages = identity.SortedSet(append(wl.Stages, reward.CntID))
			case catalog.RewardAvatar:
				wl.Avatars = identity.SortedSet(append(wl.Avatars, reward.CntID))
			}
		}
		wl.DailyDay = day
		wl.DailyTimestamp = now
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyClaimed):
		writeXMLString(w, gamexml.AlreadyClaimed)
	case errors.Is(err, store.ErrNotFound):
		writeXMLString(w, gamexml.OK)
	case err != nil:
		slog.Error("failed to grant login bonus", "device_id", id.DeviceID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to grant login bonus."))
	default:
		slog.Info("login bonus granted", "device_id", id.DeviceID, "day", day)
		writeXMLString(w, gamexml.OK)
	}
}

// DeleteAccount handles GET /delete_account.php
func (h *GameHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	writeXMLString(w, gamexml.DeleteAccount)
}

// ConfirmTier handles GET /confirm_tier.php
func (h *GameHandler) ConfirmTier(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(h.Config.FilesDir, "tier.xml"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read tier file", "error", err)
		}
		writeXMLString(w, gamexml.Empty)
		return
	}
	writeXML(w, data)
}

// GCMRegister handles GET /gcm/php/register.php
func (h *GameHandler) GCMRegister(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// History handles GET /info.php and /history.php
func (h *GameHandler) History(w http.ResponseWriter, r *http.Request) {
	h.Pages.History(w, h.Config.SimultaneousLogins)
}
