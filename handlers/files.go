// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/models"
	"github.com/danielhkuo/taiyo/policy"
	"github.com/danielhkuo/taiyo/store"
)

var (
	allowedFolders    = map[string]bool{"audio": true, "stage": true, "pak": true}
	allowedExtensions = []string{".zip", ".pak"}
)

// quotaWindow is the span the daily download limit covers.
const quotaWindow = 24 * time.Hour

// FileHandler serves game assets and batch download manifests.
type FileHandler struct {
	Deps
}

func NewFileHandler(d Deps) *FileHandler {
	return &FileHandler{Deps: d}
}

// containedPath joins name onto base and returns the cleaned result, or
// "" when it would leave base. Symlinks are resolved for paths that exist,
// so a link inside base cannot point outside it.
func containedPath(base, name string) string {
	base = filepath.Clean(base)
	full := filepath.Join(base, filepath.FromSlash(name))
	if !within(base, full) {
		return ""
	}

	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return full
	}
	realFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		// Missing paths are left for the caller's stat to reject.
		return full
	}
	if !within(realBase, realFull) {
		return ""
	}
	return full
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// tokenGated reports whether a public path falls under the token-gated
// asset tree.
func tokenGated(name string) bool {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	first, _, _ := strings.Cut(clean, "/")
	return strings.EqualFold(first, "gc2")
}

func allowedAsset(folder, filename string) bool {
	if !allowedFolders[folder] {
		return false
	}
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// authorize checks a download token. It returns the account to charge
// the download to, or a refusal message.
func (h *FileHandler) authorize(ctx context.Context, token string) (accountID int64, charge bool, refusal string, err error) {
	now := h.now()
	ok, err := h.Store.BatchTokenUsable(ctx, token, now)
	if err != nil || ok {
		return 0, false, "", err
	}

	if h.Policy.Config().Mode == policy.ModeNone {
		device, err := h.Store.Device(ctx, token)
		if err != nil {
			return 0, false, "", err
		}
		if device == nil {
			return 0, false, "Unauthorized", nil
		}
		return 0, false, "", nil
	}

	device, err := h.Store.DeviceByBindToken(ctx, token)
	if err != nil {
		return 0, false, "", err
	}
	if device == nil || device.UserID == nil {
		return 0, false, "Unauthorized - device not found", nil
	}
	b, err := h.Store.Bind(ctx, *device.UserID)
	if err != nil {
		return 0, false, "", err
	}
	if b == nil || !b.IsVerified {
		return 0, false, "Unauthorized - bind not verified", nil
	}

	used, err := h.Store.DownloadedBytes(ctx, b.UserID, now.Add(-quotaWindow))
	if err != nil {
		return 0, false, "", err
	}
	if used >= h.Config.DailyDownloadLimit {
		slog.Warn("daily download limit reached",
			"account_id", b.UserID,
			"used", humanize.IBytes(uint64(used)),
			"limit", humanize.IBytes(uint64(h.Config.DailyDownloadLimit)))
		return 0, false, "Daily download limit exceeded", nil
	}
	return b.UserID, true, "", nil
}

// Asset handles GET /files/gc2/{token}/{folder}/{filename}
func (h *FileHandler) Asset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.PathValue("token")
	folder := r.PathValue("folder")
	filename := r.PathValue("filename")

	if !allowedAsset(folder, filename) {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}

	accountID, charge, refusal, err := h.authorize(ctx, token)
	if err != nil {
		slog.Error("failed to authorize download", "folder", folder, "filename", filename, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if refusal != "" {
		http.Error(w, refusal, http.StatusForbidden)
		return
	}

	full := containedPath(filepath.Join(h.Config.FilesDir, "gc2", folder), filename)
	if full == "" {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if charge {
		if err := h.Store.LogDownload(ctx, accountID, filename, info.Size()); err != nil {
			slog.Error("failed to log download", "account_id", accountID, "filename", filename, "error", err)
		}
	}
	http.ServeFile(w, r, full)
}

// Public handles GET /files/{path...}
func (h *FileHandler) Public(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if tokenGated(name) {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}
	full := containedPath(h.Config.FilesDir, name)
	if full == "" {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, full)
}

func (h *FileHandler) readManifest(name string) (json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(h.Config.ManifestDir, name))
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, errors.New("manifest " + name + " is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// Batch handles POST /batch
func (h *FileHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.Token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	var audioManifest string
	switch req.Platform {
	case "Android":
		audioManifest = "download_manifest_android.json"
	case "iOS":
		audioManifest = "download_manifest_ios.json"
	default:
		http.Error(w, "Invalid platform", http.StatusBadRequest)
		return
	}

	err := h.Store.ConsumeBatchToken(r.Context(), req.Token, h.now())
	switch {
	case errors.Is(err, store.ErrTokenInvalid):
		http.Error(w, "Invalid token", http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrTokenExpired):
		http.Error(w, "Token expired", http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrTokenExhausted):
		http.Error(w, "No uses left", http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("failed to consume batch token", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	stage, err := h.readManifest("download_manifest.json")
	if err != nil {
		slog.Error("failed to read stage manifest", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	audio, err := h.readManifest(audioManifest)
	if err != nil {
		slog.Error("failed to read audio manifest", "platform", req.Platform, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Info("batch manifest served", "platform", req.Platform)
	middleware.JSONResponse(w, http.StatusOK, models.BatchManifest{
		Stage:  stage,
		Audio:  audio,
		Thread: h.Config.ThreadCount,
	})
}
