// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/gamexml"
	"github.com/danielhkuo/taiyo/store"
)

// saveIDAttempts bounds the search for an unused save id.
const saveIDAttempts = 10

// maxSaveSize caps an uploaded save body.
const maxSaveSize = 16 << 20

// SaveHandler stores and returns cloud saves.
type SaveHandler struct {
	Deps
}

func NewSaveHandler(d Deps) *SaveHandler {
	return &SaveHandler{Deps: d}
}

// Load handles GET /load.php
func (h *SaveHandler) Load(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if id.Account == nil {
		writeXML(w, gamexml.Status(gamexml.CodeNoAccount, gamexml.NeedAccount))
		return
	}

	data, err := h.Saves.Read(id.Account.ID)
	if err != nil {
		slog.Error("failed to read save file", "account_id", id.Account.ID, "error", err)
		data = ""
	}
	if data == "" {
		writeXML(w, gamexml.Status(gamexml.CodeNoSave, gamexml.NoSaveData))
		return
	}

	var crc string
	if id.Account.SaveCRC != nil {
		crc = *id.Account.SaveCRC
	}
	out, err := gamexml.Load(data, crc, id.Account.SaveTimestamp)
	if err != nil {
		slog.Error("failed to encode load response", "account_id", id.Account.ID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to encode save."))
		return
	}
	writeXML(w, out)
}

// Save handles POST /save.php. The body is the raw save data.
func (h *SaveHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)
	if id.Account == nil {
		writeXML(w, gamexml.Status(gamexml.CodeNoAccount, gamexml.NeedAccount))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSaveSize+1))
	if err != nil {
		slog.Error("failed to read save body", "account_id", id.Account.ID, "error", err)
		writeXMLString(w, gamexml.InvalidRequest)
		return
	}
	if len(body) > maxSaveSize {
		slog.Warn("save body too large", "account_id", id.Account.ID, "limit", maxSaveSize)
		writeXMLString(w, gamexml.InvalidRequest)
		return
	}

	pending, err := h.Saves.Stage(id.Account.ID, string(body))
	if err != nil {
		slog.Error("failed to write save file", "account_id", id.Account.ID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to store save."))
		return
	}
	defer pending.Discard()

	crc := auth.Checksum(body)
	now := h.now()
	for attempt := 1; ; attempt++ {
		saveID, err := auth.GenerateSaveID()
		if err == nil {
			err = h.Store.SetSave(ctx, id.Account.ID, crc, saveID, now)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrSaveIDTaken) || attempt == saveIDAttempts {
			slog.Error("failed to record save", "account_id", id.Account.ID, "attempt", attempt, "error", err)
			writeXML(w, gamexml.ServerError("Failed to store save."))
			return
		}
	}

	if err := pending.Commit(); err != nil {
		slog.Error("failed to replace save file", "account_id", id.Account.ID, "error", err)
		writeXML(w, gamexml.ServerError("Failed to store save."))
		return
	}
	slog.Info("save stored", "account_id", id.Account.ID, "bytes", len(body))
	writeXMLString(w, gamexml.OK)
}
