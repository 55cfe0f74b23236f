// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/pages"
	"github.com/danielhkuo/taiyo/shop"
)

type ShopHandler struct {
	Deps
	engine *shop.Engine
}

func NewShopHandler(d Deps, engine *shop.Engine) *ShopHandler {
	return &ShopHandler{Deps: d, engine: engine}
}

func rejection(w http.ResponseWriter, err error) bool {
	var rej *shop.Rejection
	if !errors.As(err, &rej) {
		return false
	}
	middleware.APIResponse(w, rej.Status, 0, rej.Message, nil)
	return true
}

// WebShop handles GET and POST /web_shop.php
func (h *ShopHandler) WebShop(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.Device == nil {
		h.Pages.Inform(w, "Invalid device information", pages.ImageShop)
		return
	}
	h.Pages.Shell(w, pages.Shell{
		Title:   "Shop",
		Host:    h.Config.BaseURL(),
		Payload: id.Query,
		Image:   pages.ImageShop.Path(),
		Script:  "web_shop.js",
	})
}

// PlayerData handles GET /api/shop/player_data
func (h *ShopHandler) PlayerData(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	data, err := h.engine.PlayerData(r.Context(), id)
	if rejection(w, err) {
		return
	}
	if err != nil {
		slog.Error("failed to load shop player data", "device_id", id.DeviceID, "error", err)
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Failed to load player data", nil)
		return
	}
	middleware.APIResponse(w, http.StatusOK, 1, "Success", data)
}

// ItemData handles POST /api/shop/item_data
func (h *ShopHandler) ItemData(w http.ResponseWriter, r *http.Request) {
	if caller(r).Device == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid device information", nil)
		return
	}

	var req models.ShopItemRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Mode == nil || req.ItemID == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid request data", nil)
		return
	}

	data, err := h.engine.ItemData(shop.Type(*req.Mode), *req.ItemID)
	if rejection(w, err) {
		return
	}
	if err != nil {
		slog.Error("failed to describe shop item", "mode", *req.Mode, "item_id", *req.ItemID, "error", err)
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Failed to load item", nil)
		return
	}
	middleware.APIResponse(w, http.StatusOK, 1, "Success", data)
}

// PurchaseItem handles POST /api/shop/purchase_item
func (h *ShopHandler) PurchaseItem(w http.ResponseWriter, r *http.Request) {
	id := caller(r)

	var req models.ShopItemRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Mode == nil || req.ItemID == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid request data", nil)
		return
	}

	coin, err := h.engine.Purchase(r.Context(), id, shop.Type(*req.Mode), *req.ItemID)
	if rejection(w, err) {
		return
	}
	if err != nil {
		slog.Error("failed to purchase item", "device_id", id.DeviceID, "mode", *req.Mode, "item_id", *req.ItemID, "error", err)
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Purchase failed", nil)
		return
	}

	slog.Info("item purchased", "device_id", id.DeviceID, "mode", *req.Mode, "item_id", *req.ItemID, "coin", coin)
	middleware.APIResponse(w, http.StatusOK, 1, "Purchase successful.", map[string]int{"coin": coin})
}
