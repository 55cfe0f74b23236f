// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/store"
)

const (
	tokenCookie = "token"
	loginURL    = "/login"
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WebHandler serves the player web console.
type WebHandler struct {
	Deps
}

func NewWebHandler(d Deps) *WebHandler {
	return &WebHandler{Deps: d}
}

// session returns the console session named by the token cookie, or nil
// when the cookie is missing, unknown or no longer allowed in.
func (d Deps) session(ctx context.Context, r *http.Request) (*models.WebSession, error) {
	c, err := r.Cookie(tokenCookie)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	ws, err := d.Store.WebSession(ctx, c.Value)
	if err != nil || ws == nil {
		return nil, err
	}
	if ws.Permission < models.PermissionUser || !d.Policy.ShouldServeWeb(ctx, ws.UserID) {
		return nil, nil
	}
	return ws, nil
}

// toLogin sends the browser back to the login page and drops its token.
func toLogin(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: tokenCookie, Path: "/", MaxAge: -1})
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// LoginPage handles GET /login
func (h *WebHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.Pages.Login(w)
}

// Login handles POST /login/login
func (h *WebHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.WebLoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}

	acct, err := h.Store.AccountByUsername(ctx, req.Username)
	if err != nil {
		slog.Error("failed to load account for console login", "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	if acct == nil || !auth.CheckPassword(acct.PasswordHash, req.Password) {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid username or password.")
		return
	}
	if !h.Policy.ShouldServeWeb(ctx, acct.ID) {
		middleware.ConsoleResponse(w, http.StatusForbidden, "failed", "Access denied.")
		return
	}

	token, err := auth.GenerateWebToken()
	if err != nil {
		slog.Error("failed to generate web token", "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	err = h.Store.StartWebSession(ctx, acct.ID, token)
	if errors.Is(err, store.ErrWebDenied) {
		middleware.ConsoleResponse(w, http.StatusForbidden, "failed", "Access denied.")
		return
	}
	if err != nil {
		slog.Error("failed to start web session", "account_id", acct.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}

	slog.Info("console login", "account_id", acct.ID)
	middleware.ConsoleResponse(w, http.StatusOK, "success", token)
}

// UserCenter handles GET /usercenter
func (h *WebHandler) UserCenter(w http.ResponseWriter, r *http.Request) {
	ws, err := h.session(r.Context(), r)
	if err != nil {
		slog.Error("failed to load web session", "error", err)
	}
	if ws == nil {
		toLogin(w, r)
		return
	}
	h.Pages.UserCenter(w, ws.Permission == models.PermissionAdmin)
}

// API handles POST /usercenter/api. Admins may name another user_id.
func (h *WebHandler) API(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.UserCenterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}
	if req.Token == "" {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Token is required.")
		return
	}

	ws, err := h.Store.WebSession(ctx, req.Token)
	if err != nil {
		slog.Error("failed to load web session", "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	if ws == nil {
		middleware.ConsoleResponse(w, http.StatusForbidden, "failed", "Invalid token.")
		return
	}

	userID := ws.UserID
	if ws.Permission == models.PermissionAdmin && req.UserID != "" {
		id, err := req.UserID.Int64()
		if err != nil {
			middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid user id.")
			return
		}
		userID = id
	}

	switch req.Action {
	case "basic":
		acct, err := h.Store.Account(ctx, userID)
		if err != nil {
			slog.Error("failed to load account", "account_id", userID, "error", err)
			middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
			return
		}
		if acct == nil {
			middleware.ConsoleResponse(w, http.StatusNotFound, "failed", "User not found.")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, models.ConsoleResponse{
			Status: "success",
			Data: models.UserCenterBasic{
				Username:       acct.Username,
				NextSaveExport: ws.LastSaveExport + int64(h.Config.SaveExportCooldown.Seconds()),
			},
		})
	default:
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid action.")
	}
}

// Export handles GET /usercenter/export_data
func (h *WebHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, err := h.session(ctx, r)
	if err != nil {
		slog.Error("failed to load web session", "error", err)
	}
	if ws == nil {
		toLogin(w, r)
		return
	}

	now := h.now()
	elapsed := now.Unix() - ws.LastSaveExport
	cooldown := int64(h.Config.SaveExportCooldown.Seconds())
	if elapsed < cooldown {
		middleware.ConsoleResponse(w, http.StatusTooManyRequests, "failed",
			fmt.Sprintf("Please wait %d seconds before exporting again.", cooldown-elapsed))
		return
	}

	sheets, err := h.Store.ExportData(ctx, ws.UserID)
	if err != nil {
		slog.Error("failed to collect export data", "account_id", ws.UserID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	book, err := exportWorkbook(sheets)
	if err != nil {
		slog.Error("failed to build export workbook", "account_id", ws.UserID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}
	if err := h.Store.SetLastExport(ctx, ws.UserID, now); err != nil {
		slog.Error("failed to record export", "account_id", ws.UserID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "Internal server error.")
		return
	}

	slog.Info("data exported", "account_id", ws.UserID, "bytes", book.Len())
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="export.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := book.WriteTo(w); err != nil {
		slog.Debug("failed to write export", "error", err)
	}
}

// exportWorkbook lays out one sheet per export table: a header row of
// column names followed by the rows. Empty tables get an empty sheet.
func exportWorkbook(sheets []store.ExportSheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, s := range sheets {
		idx, err := f.NewSheet(s.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", s.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if len(s.Rows) == 0 {
			continue
		}

		header := make([]any, len(s.Columns))
		for j, c := range s.Columns {
			header[j] = c
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return nil, fmt.Errorf("failed to write %s header: %w", s.Name, err)
		}
		for n, row := range s.Rows {
			cells := make([]any, len(s.Columns))
			for j, c := range s.Columns {
				cells[j] = exportCell(row[c])
			}
			cell, err := excelize.CoordinatesToCellName(1, n+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(s.Name, cell, &cells); err != nil {
				return nil, fmt.Errorf("failed to write %s row: %w", s.Name, err)
			}
		}
	}
	if len(sheets) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf, nil
}

// exportCell flattens JSON and array values to text for a spreadsheet cell.
func exportCell(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case json.RawMessage:
		return string(x)
	case []int64:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return v
}
