// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/store"
)

// DiscordHandler serves the bind bot.
type DiscordHandler struct {
	Deps
}

func NewDiscordHandler(d Deps) *DiscordHandler {
	return &DiscordHandler{Deps: d}
}

// Bind handles POST /discord/bind. The bot proves itself with the
// X-Bot-Secret header and receives a verification code to DM the player.
func (h *DiscordHandler) Bind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	secret := h.Config.DiscordBotSecret
	if secret == "" || !auth.CodesEqual(r.Header.Get("X-Bot-Secret"), secret) {
		middleware.ConsoleResponse(w, http.StatusForbidden, "failed", "Access denied.")
		return
	}

	var req models.DiscordBindRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil ||
		req.Username == "" || req.BindCode == "" || req.DiscordAccount == "" {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}

	acct, err := h.Store.AccountByUsername(ctx, req.Username)
	if err != nil {
		slog.Error("failed to load account for discord bind", "username", req.Username, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	if acct == nil {
		middleware.ConsoleResponse(w, http.StatusNotFound, "failed", "User not found.")
		return
	}

	expected := auth.DiscordBindCode(acct.Username, acct.ID, acct.PasswordHash, h.Config.BindSalt)
	if !auth.CodesEqual(req.BindCode, expected) {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid bind code.")
		return
	}

	existing, err := h.Store.Bind(ctx, acct.ID)
	if err != nil {
		slog.Error("failed to load bind", "account_id", acct.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	if existing != nil && existing.IsVerified {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Account is already bound.")
		return
	}

	now := h.now()
	code, totpSecret, err := auth.NewVerificationCode(req.DiscordAccount, now)
	if err != nil {
		slog.Error("failed to create verification code", "account_id", acct.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}

	err = h.Store.SaveBind(ctx, acct.ID, req.DiscordAccount, code, totpSecret, now)
	if errors.Is(err, store.ErrBindTaken) {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "This Discord account is already bound to another user.")
		return
	}
	if err != nil {
		slog.Error("failed to save discord bind", "account_id", acct.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}

	slog.Info("discord bind code issued", "account_id", acct.ID)
	middleware.ConsoleResponse(w, http.StatusOK, "success", code)
}
