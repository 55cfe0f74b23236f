// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/taiyo/gamexml"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/pages"
	"github.com/danielhkuo/taiyo/ranking"
	"github.com/danielhkuo/taiyo/store"
)

// RankingHandler serves results, leaderboards, titles and the status
// web views.
type RankingHandler struct {
	Deps
	engine *ranking.Engine
}

func NewRankingHandler(d Deps, engine *ranking.Engine) *RankingHandler {
	return &RankingHandler{Deps: d, engine: engine}
}

// Result handles GET /result.php
func (h *RankingHandler) Result(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)

	sub, err := ranking.SubmissionFromFields(id.Fields)
	if err != nil {
		writeXMLString(w, gamexml.InvalidRequest)
		return
	}

	rank, ranked, err := h.engine.Submit(ctx, id, sub)
	if errors.Is(err, ranking.ErrInvalidResult) {
		writeXMLString(w, gamexml.InvalidRequest)
		return
	}
	if err != nil {
		slog.Error("failed to record result", "device_id", id.DeviceID, "song_id", sub.SongID, "mode", sub.Mode, "error", err)
		writeXML(w, gamexml.ServerError("Failed to record result."))
		return
	}

	reply := gamexml.NewResponse().Element("code", gamexml.CodeOK)
	if ranked {
		reply.Element("after", rank)
		slog.Info("result ranked", "account_id", id.Account.ID, "song_id", sub.SongID, "mode", sub.Mode, "rank", rank)
	} else {
		reply.Element("after", "")
	}
	out, err := reply.Bytes()
	if err != nil {
		slog.Error("failed to encode result response", "error", err)
		writeXML(w, gamexml.ServerError("Failed to encode response."))
		return
	}
	writeXML(w, out)
}

// Mission handles GET /mission.php
func (h *RankingHandler) Mission(w http.ResponseWriter, r *http.Request) {
	if caller(r).Device == nil {
		h.Pages.Inform(w, "Invalid device information", pages.ImageRank)
		return
	}
	rows := make([]pages.MissionRow, 0, len(h.Catalog.ExpUnlocks))
	for _, u := range h.Catalog.ExpUnlocks {
		rows = append(rows, pages.MissionRow{Level: u.Level, Song: h.Catalog.SongName(u.ID)})
	}
	h.Pages.Mission(w, rows)
}

func (h *RankingHandler) shell(w http.ResponseWriter, r *http.Request, title, script string, image pages.Image) {
	id := caller(r)
	if id.Device == nil {
		h.Pages.Inform(w, "Invalid device information", pages.ImageRank)
		return
	}
	h.Pages.Shell(w, pages.Shell{
		Title:   title,
		Host:    h.Config.BaseURL(),
		Payload: id.Query,
		Image:   image.Path(),
		Script:  script,
	})
}

// Status handles GET /status.php
func (h *RankingHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.shell(w, r, "Status", "status.js", pages.ImageTitle)
}

// Ranking handles GET /ranking.php
func (h *RankingHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	h.shell(w, r, "Ranking", "ranking.js", pages.ImageRank)
}

// TitleList handles GET /api/status/title_list
func (h *RankingHandler) TitleList(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.Device == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid user information", nil)
		return
	}

	info := models.PlayerInfo{
		Username: "Guest",
		Title:    id.Device.Title,
		Avatar:   id.Device.Avatar,
		Level:    id.Device.Level,
	}
	if id.Account != nil {
		info.Username = id.Account.Username
		info.Title = id.Account.Title
		info.Avatar = id.Account.Avatar
	}

	middleware.APIResponse(w, http.StatusOK, 1, "Success", map[string]any{
		"title_list":  h.Catalog.Titles,
		"player_info": info,
	})
}

// SetTitle handles POST /api/status/set_title
func (h *RankingHandler) SetTitle(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.Device == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid user information", nil)
		return
	}

	var req models.SetTitleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Title == nil || !h.Catalog.ValidTitle(*req.Title) {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid title", nil)
		return
	}

	var accountID *int64
	if id.Account != nil {
		accountID = &id.Account.ID
	}
	err := h.Store.SetTitle(r.Context(), id.DeviceID, accountID, *req.Title)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("failed to set title", "device_id", id.DeviceID, "error", err)
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Failed to update title", nil)
		return
	}
	middleware.APIResponse(w, http.StatusOK, 1, "Title updated successfully", nil)
}

// SongList handles GET /api/ranking/song_list
func (h *RankingHandler) SongList(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	stages := []int{}
	if id.Device != nil {
		owned, _, err := h.Resolver.Owned(r.Context(), id, false)
		if err != nil {
			slog.Error("failed to load owned stages", "device_id", id.DeviceID, "error", err)
			middleware.APIResponse(w, http.StatusInternalServerError, 0, "Failed to load songs", nil)
			return
		}
		if owned != nil {
			stages = owned
		}
	}
	middleware.APIResponse(w, http.StatusOK, 1, "Success", map[string]any{
		"song_list": h.Catalog.Songs,
		"my_stage":  stages,
	})
}

// Individual handles POST /api/ranking/individual
func (h *RankingHandler) Individual(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.Device == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid device information", nil)
		return
	}

	var req models.RankingRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.SongID == nil || req.Mode == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid song_id or mode", nil)
		return
	}

	page, err := h.engine.Individual(r.Context(), id, *req.SongID, *req.Mode, req.Page)
	if errors.Is(err, ranking.ErrInvalidBoard) {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid song_id or mode", nil)
		return
	}
	if err != nil {
		slog.Error("failed to load song ranking", "song_id", *req.SongID, "mode", *req.Mode, "error", err)
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Failed to load ranking", nil)
		return
	}
	middleware.APIResponse(w, http.StatusOK, 1, "Success", page)
}

// Total handles POST /api/ranking/total
func (h *RankingHandler) Total(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.Device == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid device information", nil)
		return
	}

	var req models.RankingRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Mode == nil {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid mode", nil)
		return
	}

	page, err := h.engine.Total(r.Context(), id, *req.Mode, req.Page)
	if errors.Is(err, ranking.ErrInvalidCategory) {
		middleware.APIResponse(w, http.StatusBadRequest, 0, "Invalid mode", nil)
		return
	}
	if err != nil {
		slog.Error("failed to load total ranking", "mode", *req.Mode, "error", err)
		middleware.APIResponse(w, http.StatusInternalServerError, 0, "Failed to load ranking", nil)
		return
	}
	middleware.APIResponse(w, http.StatusOK, 1, "Success", page)
}
