// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielhkuo/taiyo/admintable"
	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/gamexml"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/release"
	"github.com/danielhkuo/taiyo/store"
)

const (
	msgInvalidToken = "Invalid token."
	msgInvalidTable = "Invalid table name."
)

// AdminHandler serves the admin panel. Every endpoint requires a console
// session with admin permission.
type AdminHandler struct {
	Deps
	release *release.Tracker
}

func NewAdminHandler(d Deps, tracker *release.Tracker) *AdminHandler {
	return &AdminHandler{Deps: d, release: tracker}
}

func (h *AdminHandler) isAdmin(r *http.Request) bool {
	c, err := r.Cookie(tokenCookie)
	if err != nil || c.Value == "" {
		return false
	}
	ws, err := h.Store.WebSession(r.Context(), c.Value)
	if err != nil {
		slog.Error("failed to load web session", "error", err)
		return false
	}
	return ws != nil && ws.Permission == models.PermissionAdmin
}

// guard answers non-admins with the failed envelope and reports whether
// the request may continue.
func (h *AdminHandler) guard(w http.ResponseWriter, r *http.Request) bool {
	if h.isAdmin(r) {
		return true
	}
	middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", msgInvalidToken)
	return false
}

// Page handles GET /admin
func (h *AdminHandler) Page(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		toLogin(w, r)
		return
	}
	h.Pages.Admin(w, admintable.Names())
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

// Table handles GET /admin/table. schema=1 returns the column types
// instead of rows.
func (h *AdminHandler) Table(w http.ResponseWriter, r *http.Request) {
	empty := models.TablePage{Data: []map[string]any{}, LastPage: 1}
	if !h.isAdmin(r) {
		middleware.JSONResponse(w, http.StatusBadRequest, empty)
		return
	}

	q := r.URL.Query()
	t, ok := admintable.Lookup(q.Get("table"))
	if !ok {
		middleware.JSONResponse(w, http.StatusBadRequest, empty)
		return
	}
	if q.Get("schema") == "1" {
		middleware.JSONResponse(w, http.StatusOK, t.Schema())
		return
	}

	page, err := h.Store.TablePage(r.Context(), t, store.TableQuery{
		Page:   queryInt(r, "page", 1),
		Size:   queryInt(r, "size", 25),
		Sort:   q.Get("sort"),
		Desc:   q.Get("dir") == "desc",
		Search: strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		slog.Error("failed to page admin table", "table", t.Name, "error", err)
		middleware.JSONResponse(w, http.StatusInternalServerError, empty)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, page)
}

// rowError answers a rejected row. Blank required columns get 403 and
// everything else 402.
func rowError(w http.ResponseWriter, err error) {
	var re *admintable.RowError
	if errors.As(err, &re) && re.Null {
		middleware.ConsoleResponse(w, http.StatusForbidden, "failed", re.Message)
		return
	}
	middleware.ConsoleResponse(w, http.StatusPaymentRequired, "failed", "Invalid row data: "+err.Error())
}

// Update handles POST /admin/table/update
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	var req models.AdminRowRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}
	t, ok := admintable.Lookup(req.Table)
	if !ok {
		middleware.ConsoleResponse(w, http.StatusUnauthorized, "failed", msgInvalidTable)
		return
	}

	row, err := t.Validate(req.Row, admintable.ForUpdate)
	if err != nil {
		rowError(w, err)
		return
	}

	err = h.Store.AdminUpdate(r.Context(), t, row)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ConsoleResponse(w, http.StatusNotFound, "failed", "Row not found.")
		return
	}
	if err != nil {
		slog.Error("failed to update admin row", "table", t.Name, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}
	slog.Info("admin row updated", "table", t.Name, "key", row[t.Key])
	middleware.ConsoleResponse(w, http.StatusOK, "success", "Row updated successfully.")
}

// Insert handles POST /admin/table/insert
func (h *AdminHandler) Insert(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	var req models.AdminRowRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}
	t, ok := admintable.Lookup(req.Table)
	if !ok {
		middleware.ConsoleResponse(w, http.StatusUnauthorized, "failed", msgInvalidTable)
		return
	}

	row, err := t.Validate(req.Row, admintable.ForInsert)
	if err != nil {
		rowError(w, err)
		return
	}

	inserted, err := h.Store.AdminInsert(r.Context(), t, row)
	if err != nil {
		slog.Error("failed to insert admin row", "table", t.Name, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}
	slog.Info("admin row inserted", "table", t.Name, "key", inserted)
	middleware.JSONResponse(w, http.StatusOK, models.AdminInsertResponse{
		Status:     "success",
		Message:    "Row inserted successfully.",
		InsertedID: inserted,
	})
}

// Delete handles POST /admin/table/delete. The row is named by the
// table's own key column.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	var req models.AdminDeleteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}
	t, ok := admintable.Lookup(req.Table)
	if !ok {
		middleware.ConsoleResponse(w, http.StatusUnauthorized, "failed", msgInvalidTable)
		return
	}

	raw := req.ID
	if t.Key == "device_id" {
		raw = req.DeviceID
	}
	key := keyString(raw)
	if key == "" {
		middleware.ConsoleResponse(w, http.StatusPaymentRequired, "failed", "Row ID is required.")
		return
	}

	if err := h.Store.AdminDelete(r.Context(), t, key); err != nil {
		slog.Error("failed to delete admin row", "table", t.Name, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}
	slog.Info("admin row deleted", "table", t.Name, "key", key)
	middleware.ConsoleResponse(w, http.StatusOK, "success", "Row deleted successfully.")
}

// keyString renders a JSON key value. Whole numbers lose their decimal
// point.
func keyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Data handles GET /admin/data?id=
func (h *AdminHandler) Data(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid user id.")
		return
	}

	data, err := h.Saves.Read(id)
	if err != nil {
		slog.Error("failed to read save file", "account_id", id, "error", err)
	}
	middleware.JSONResponse(w, http.StatusOK, models.ConsoleResponse{Status: "success", Data: data})
}

// SaveData handles POST /admin/data/save
func (h *AdminHandler) SaveData(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	var req models.AdminSaveRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.ID == 0 {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}

	pending, err := h.Saves.Stage(req.ID, req.Data)
	if err != nil {
		slog.Error("failed to write save file", "account_id", req.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}
	defer pending.Discard()

	crc := auth.Checksum([]byte(req.Data))
	now := h.now()
	err = h.Store.SetSaveMeta(r.Context(), req.ID, &crc, &now)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ConsoleResponse(w, http.StatusNotFound, "failed", "User not found.")
		return
	}
	if err != nil {
		slog.Error("failed to record save", "account_id", req.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}

	if err := pending.Commit(); err != nil {
		slog.Error("failed to replace save file", "account_id", req.ID, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}

	slog.Info("admin replaced save", "account_id", req.ID, "bytes", len(req.Data))
	middleware.ConsoleResponse(w, http.StatusOK, "success", "Data saved successfully.")
}

// UpdateMaintenance handles POST /admin/update_maintenance
func (h *AdminHandler) UpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	var req models.MaintenanceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ConsoleResponse(w, http.StatusBadRequest, "failed", "Invalid request data.")
		return
	}

	notice := models.Notice{
		Code: req.Status,
		Message: models.Messages{
			Ja: req.MessageJa,
			En: req.MessageEn,
			Fr: req.MessageFr,
			It: req.MessageIt,
		},
	}
	if err := gamexml.WriteNotice(h.Config.NoticePath, notice); err != nil {
		slog.Error("failed to write notice", "path", h.Config.NoticePath, "error", err)
		middleware.ConsoleResponse(w, http.StatusInternalServerError, "failed", "An error occurred: "+err.Error())
		return
	}

	slog.Info("maintenance notice updated", "code", req.Status)
	middleware.ConsoleResponse(w, http.StatusOK, "success", "Maintenance settings updated successfully.")
}

// RefreshRelease handles POST /admin/release/refresh
func (h *AdminHandler) RefreshRelease(w http.ResponseWriter, r *http.Request) {
	if !h.guard(w, r) {
		return
	}
	if err := h.release.Refresh(r.Context()); err != nil {
		slog.Warn("release refresh incomplete", "error", err)
	}
	middleware.JSONResponse(w, http.StatusOK, models.ConsoleResponse{
		Status:  "success",
		Message: "Release info refreshed.",
		Data:    models.ReleaseInfo{Version: h.release.Version(), Present: h.release.Present()},
	})
}
