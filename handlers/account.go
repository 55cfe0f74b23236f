// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/mailer"
	"github.com/danielhkuo/taiyo/pages"
	"github.com/danielhkuo/taiyo/policy"
	"github.com/danielhkuo/taiyo/store"
)

const (
	msgInvalidRequest = "FAILED:<br>Invalid request data."
	msgInternal       = "FAILED:<br>Internal server error."
	msgNoUser         = "FAILED:<br>User does not exist."
	msgNameTaken      = "FAILED:<br>Another user already has this name."
	msgSameAsPassword = "FAILED:<br>Username cannot be the same as password."
	msgMissingLogin   = "FAILED:<br>Missing username or password."
	msgSendFailed     = "Failed to send email. Please try again later."
)

// resendInterval is the least time between two codes for one address.
const resendInterval = time.Minute

// AccountHandler serves the taito id pages and their form posts.
type AccountHandler struct {
	Deps
	mailer *mailer.Mailer
}

// NewAccountHandler creates the handler. A nil mailer makes every email
// bind attempt fail.
func NewAccountHandler(d Deps, m *mailer.Mailer) *AccountHandler {
	return &AccountHandler{Deps: d, mailer: m}
}

func (h *AccountHandler) inform(w http.ResponseWriter, text string) {
	h.Pages.Inform(w, text, pages.ImageTaitoID)
}

func validUsername(username string) bool {
	return len(username) >= 6 && len(username) <= 20
}

// TTag handles GET /ttag.php
func (h *AccountHandler) TTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)
	if id.Account == nil {
		h.Pages.Register(w, id.Query)
		return
	}

	mode := h.Policy.Config().Mode
	profile := pages.Profile{
		Query:    id.Query,
		Username: id.Account.Username,
		CoinMP:   id.Account.CoinMP,
		Mode:     int(mode),
	}
	if id.Account.SaveID != nil {
		profile.SaveID = *id.Account.SaveID
	}

	if mode != policy.ModeNone {
		b, err := h.Store.Bind(ctx, id.Account.ID)
		if err != nil {
			slog.Error("failed to load bind", "account_id", id.Account.ID, "error", err)
			h.inform(w, msgInternal)
			return
		}
		if b != nil && b.IsVerified {
			profile.Bind = pages.BindView{Verified: true, Account: b.Account}
		}
		if mode == policy.ModeDiscord {
			profile.Bind.Code = auth.DiscordBindCode(id.Account.Username, id.Account.ID, id.Account.PasswordHash, h.Config.BindSalt)
		}
	}
	h.Pages.Profile(w, profile)
}

// Register handles POST /register/
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	switch {
	case username == "" || password == "":
		h.inform(w, msgMissingLogin)
		return
	case username == password:
		h.inform(w, msgSameAsPassword)
		return
	case !validUsername(username):
		h.inform(w, "FAILED:<br>Username must be between 6 and 20<br>characters long.")
		return
	case len(password) < 6:
		h.inform(w, "FAILED:<br>Password must have<br>6 or above characters.")
		return
	case !auth.IsAlphanumeric(username):
		h.inform(w, "FAILED:<br>Username must consist entirely of<br>alphanumeric characters.")
		return
	}

	id := caller(r)
	existing, err := h.Resolver.ByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to look up username", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if existing != nil {
		h.inform(w, msgNameTaken)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if err := h.createDevice(ctx, id.DeviceID); err != nil {
		slog.Error("failed to create device", "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}

	accountID, err := h.Store.CreateAccount(ctx, username, hash, id.DeviceID, h.Config.SimultaneousLogins)
	if errors.Is(err, store.ErrUsernameTaken) {
		h.inform(w, msgNameTaken)
		return
	}
	if err != nil {
		slog.Error("failed to create account", "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}

	slog.Info("account registered", "account_id", accountID, "device_id", id.DeviceID)
	h.inform(w, "SUCCESS:<br>Account is registered.<br>You can now backup/restore your save file.<br>You can only log into one device at a time.")
}

// Login handles POST /login/
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.inform(w, msgMissingLogin)
		return
	}

	id := caller(r)
	account, err := h.Resolver.ByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to look up username", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if account == nil || !auth.CheckPassword(account.PasswordHash, password) {
		h.inform(w, "FAILED:<br>Username or password incorrect.")
		return
	}

	if err := h.createDevice(ctx, id.DeviceID); err != nil {
		slog.Error("failed to create device", "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	if err := h.Store.LinkDevice(ctx, account.ID, id.DeviceID, h.Config.SimultaneousLogins); err != nil {
		slog.Error("failed to log in device", "account_id", account.ID, "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}

	slog.Info("device logged in", "account_id", account.ID, "device_id", id.DeviceID)
	h.inform(w, "SUCCESS:<br>You are logged in.")
}

// Logout handles POST /logout/
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)

	banned, err := h.Policy.Banned(ctx, id.DeviceID, id.Account)
	if err != nil {
		slog.Error("failed to check blacklist", "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	if banned {
		h.inform(w, "FAILED:<br>Your account is banned and you are<br>not allowed to perform this action.")
		return
	}

	if err := h.Store.UnlinkDevice(ctx, id.DeviceID); err != nil {
		slog.Error("failed to log out device", "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	h.inform(w, "Logout success.")
}

// NameReset handles POST /name_reset/
func (h *AccountHandler) NameReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	switch {
	case username == "" || password == "":
		h.inform(w, msgMissingLogin)
		return
	case !validUsername(username):
		h.inform(w, "FAILED:<br>Username must be between 6 and 20 characters long.")
		return
	case !auth.IsAlphanumeric(username):
		h.inform(w, "FAILED:<br>Username must consist entirely of alphanumeric characters.")
		return
	case username == password:
		h.inform(w, msgSameAsPassword)
		return
	}

	id := caller(r)
	banned, err := h.Policy.Banned(ctx, id.DeviceID, id.Account)
	if err != nil {
		slog.Error("failed to check blacklist", "device_id", id.DeviceID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	if banned {
		h.inform(w, "FAILED:<br>Your account is banned and you are not allowed to perform this action.")
		return
	}
	if id.Account == nil {
		h.inform(w, "FAILED:<br>User does not exist.<br>This should not happen.")
		return
	}

	existing, err := h.Resolver.ByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to look up username", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if existing != nil {
		h.inform(w, msgNameTaken)
		return
	}
	if id.Account.PasswordHash == "" {
		h.inform(w, "FAILED:<br>User has no password hash.<br>This should not happen.")
		return
	}
	if !auth.CheckPassword(id.Account.PasswordHash, password) {
		h.inform(w, "FAILED:<br>Password is not correct.<br>Please try again.")
		return
	}

	err = h.Store.SetUsername(ctx, id.Account.ID, username)
	if errors.Is(err, store.ErrUsernameTaken) {
		h.inform(w, msgNameTaken)
		return
	}
	if err != nil {
		slog.Error("failed to rename account", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}

	slog.Info("account renamed", "account_id", id.Account.ID, "username", username)
	h.inform(w, "SUCCESS:<br>Username updated.")
}

// PasswordReset handles POST /password_reset/
func (h *AccountHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	oldPassword := r.PostFormValue("old")
	newPassword := r.PostFormValue("new")
	if oldPassword == "" || newPassword == "" {
		h.inform(w, "FAILED:<br>Missing old or new password.")
		return
	}

	id := caller(r)
	if id.Account == nil {
		h.inform(w, "FAILED:<br>User does not exist.<br>This should not happen.")
		return
	}
	if id.Account.Username == newPassword {
		h.inform(w, msgSameAsPassword)
		return
	}
	if len(newPassword) < 6 {
		h.inform(w, "FAILED:<br>Password must have 6 or more characters.")
		return
	}
	if id.Account.PasswordHash == "" {
		h.inform(w, "FAILED:<br>User has no password hash.<br>This should not happen.")
		return
	}
	if !auth.CheckPassword(id.Account.PasswordHash, oldPassword) {
		h.inform(w, "FAILED:<br>Old password is not correct.<br>Please try again.")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if err := h.Store.SetPasswordHash(ctx, id.Account.ID, hash); err != nil {
		slog.Error("failed to update password", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	h.inform(w, "SUCCESS:<br>Password updated.")
}

// CoinMP handles POST /coin_mp/
func (h *AccountHandler) CoinMP(w http.ResponseWriter, r *http.Request) {
	raw := r.PostFormValue("coin_mp")
	if raw == "" {
		h.inform(w, "FAILED:<br>Missing multiplier.")
		return
	}
	mp, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || mp < 0 || mp > 5 {
		h.inform(w, "FAILED:<br>Multiplier not acceptable.")
		return
	}

	id := caller(r)
	if id.Account == nil {
		h.inform(w, msgNoUser)
		return
	}
	if err := h.Store.SetCoinMP(r.Context(), id.Account.ID, mp); err != nil {
		slog.Error("failed to set coin multiplier", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	h.inform(w, "SUCCESS:<br>Coin multiplier set to "+strconv.Itoa(mp)+".")
}

// SaveMigration handles POST /save_migration/. It copies the save named
// by a save id into the caller's account.
func (h *AccountHandler) SaveMigration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saveID := r.PostFormValue("save_id")
	if saveID == "" {
		h.inform(w, "FAILED:<br>Missing save_id.")
		return
	}
	if !auth.ValidSaveID(saveID) {
		h.inform(w, "FAILED:<br>Save ID not acceptable format.")
		return
	}

	id := caller(r)
	if id.Account == nil {
		h.inform(w, msgNoUser)
		return
	}

	source, err := h.Resolver.BySaveID(ctx, saveID)
	if err != nil {
		slog.Error("failed to look up save id", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if source != nil && source.ID == id.Account.ID {
		h.inform(w, "FAILED:<br>Save ID is already associated with your account.")
		return
	}

	var data string
	if source != nil {
		data, err = h.Saves.Read(source.ID)
		if err != nil {
			slog.Error("failed to read save file", "account_id", source.ID, "error", err)
			data = ""
		}
	}
	if data == "" {
		h.inform(w, "FAILED:<br>Save ID is not associated with a save file.")
		return
	}

	pending, err := h.Saves.Stage(id.Account.ID, data)
	if err != nil {
		slog.Error("failed to write save file", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	defer pending.Discard()

	if err := h.Store.SetSaveMeta(ctx, id.Account.ID, source.SaveCRC, source.SaveTimestamp); err != nil {
		slog.Error("failed to record migrated save", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	if err := pending.Commit(); err != nil {
		slog.Error("failed to replace save file", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}

	slog.Info("save migrated", "account_id", id.Account.ID, "source_account_id", source.ID)
	h.inform(w, "SUCCESS:<br>Save migration was applied. If this was done by mistake, press the Save button now.")
}

// SendEmail handles POST /send_email/
func (h *AccountHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)
	if id.Account == nil {
		h.inform(w, msgNoUser)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	if !auth.ValidEmail(email) {
		h.inform(w, "Invalid Email.")
		return
	}

	now := h.now()
	existing, err := h.Store.BindByAccount(ctx, email)
	if err != nil {
		slog.Error("failed to look up bind", "error", err)
		h.inform(w, msgInternal)
		return
	}
	if existing != nil && now.Sub(existing.BindDate) < resendInterval {
		h.inform(w, "Too many requests. Please try again later.")
		return
	}
	if existing != nil && existing.UserID != id.Account.ID {
		h.inform(w, msgSendFailed)
		return
	}
	if h.mailer == nil {
		slog.Warn("email bind requested but SMTP is not configured", "account_id", id.Account.ID)
		h.inform(w, msgSendFailed)
		return
	}

	code, secret, err := auth.NewVerificationCode(email, now)
	if err != nil {
		slog.Error("failed to create verification code", "error", err)
		h.inform(w, msgSendFailed)
		return
	}
	if err := h.mailer.SendCode(ctx, email, code, r.Header.Get("Accept-Language")); err != nil {
		slog.Error("failed to send verification email", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgSendFailed)
		return
	}
	if err := h.Store.SaveBind(ctx, id.Account.ID, email, code, secret, now); err != nil {
		slog.Error("failed to save bind", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgSendFailed)
		return
	}

	h.inform(w, "Email sent. Please enter the page again, fill in the verification code to complete the binding.")
}

// Verify handles POST /verify/
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := caller(r)
	if id.Account == nil {
		h.inform(w, msgNoUser)
		return
	}

	b, err := h.Store.Bind(ctx, id.Account.ID)
	if err != nil {
		slog.Error("failed to load bind", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}
	if b != nil && b.IsVerified {
		h.inform(w, "This account is already bound to an account.")
		return
	}

	now := h.now()
	code := strings.TrimSpace(r.PostFormValue("code"))
	if b == nil || b.Secret == nil || code == "" ||
		now.Sub(b.BindDate) > auth.VerificationPeriod ||
		!auth.CheckVerificationCode(code, *b.Secret, now) {
		h.inform(w, "Invalid or expired verification code.")
		return
	}

	if err := h.Store.VerifyBind(ctx, b.ID, now); err != nil {
		slog.Error("failed to verify bind", "account_id", id.Account.ID, "error", err)
		h.inform(w, msgInternal)
		return
	}

	slog.Info("bind verified", "account_id", id.Account.ID, "bind_account", b.Account)
	h.inform(w, "Verified and account successfully bound.")
}
