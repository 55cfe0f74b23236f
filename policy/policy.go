// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package policy

import (
	"context"
	"log/slog"

	"github.com/danielhkuo/taiyo/models"
)

// Mode selects the second authorization factor.
type Mode int

const (
	ModeNone    Mode = 0
	ModeEmail   Mode = 1
	ModeDiscord Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeEmail:
		return "email"
	case ModeDiscord:
		return "discord"
	default:
		return "none"
	}
}

type Config struct {
	// AuthorizationNeeded restricts service to whitelisted, non-banned players.
	AuthorizationNeeded bool
	Mode                Mode
	// Accounts with ids below this limit keep web access without a bind.
	GrandfatheredAccountLimit int64
}

// Lookup is the read side of the store the evaluator needs. Terms are
// device ids or usernames.
type Lookup interface {
	Whitelisted(ctx context.Context, terms ...string) (bool, error)
	Blacklisted(ctx context.Context, terms ...string) (bool, error)
	Bind(ctx context.Context, accountID int64) (*models.Bind, error)
}

// Evaluator decides whether a caller may be served. Every lookup error
// denies.
type Evaluator struct {
	cfg    Config
	lookup Lookup
}

func NewEvaluator(cfg Config, lookup Lookup) *Evaluator {
	return &Evaluator{cfg: cfg, lookup: lookup}
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

// BindRequired reports whether a verified bind gates the game.
func (e *Evaluator) BindRequired() bool {
	return e.cfg.Mode != ModeNone
}

// ShouldServe applies the list check and then the bind check.
func (e *Evaluator) ShouldServe(ctx context.Context, deviceID string, account *models.Account) bool {
	if !e.ShouldServeInit(ctx, deviceID, account) {
		return false
	}
	if e.cfg.Mode == ModeNone {
		return true
	}
	if account == nil {
		slog.Debug("denied: bind required without account", "device_id", deviceID)
		return false
	}
	return e.verified(ctx, account.ID)
}

// ShouldServeInit applies the whitelist/blacklist check only. Start, sync
// and login bonus use it so unbound players can still reach the bind flow.
func (e *Evaluator) ShouldServeInit(ctx context.Context, deviceID string, account *models.Account) bool {
	if !e.cfg.AuthorizationNeeded {
		return true
	}
	terms := identityTerms(deviceID, account)

	listed, err := e.lookup.Whitelisted(ctx, terms...)
	if err != nil {
		slog.Error("whitelist lookup failed", "device_id", deviceID, "error", err)
		return false
	}
	if !listed {
		slog.Debug("denied: not whitelisted", "device_id", deviceID)
		return false
	}

	banned, err := e.Banned(ctx, deviceID, account)
	if err != nil || banned {
		return false
	}
	return true
}

// ShouldServeWeb gates the web console by bind state. Grandfathered
// accounts always pass.
func (e *Evaluator) ShouldServeWeb(ctx context.Context, accountID int64) bool {
	if e.cfg.Mode == ModeNone {
		return true
	}
	if accountID < e.cfg.GrandfatheredAccountLimit {
		return true
	}
	return e.verified(ctx, accountID)
}

// Banned reports whether the device or the account's username is on the
// blacklist.
func (e *Evaluator) Banned(ctx context.Context, deviceID string, account *models.Account) (bool, error) {
	banned, err := e.lookup.Blacklisted(ctx, identityTerms(deviceID, account)...)
	if err != nil {
		slog.Error("blacklist lookup failed", "device_id", deviceID, "error", err)
		return false, err
	}
	if banned {
		slog.Debug("denied: blacklisted", "device_id", deviceID)
	}
	return banned, nil
}

func (e *Evaluator) verified(ctx context.Context, accountID int64) bool {
	bind, err := e.lookup.Bind(ctx, accountID)
	if err != nil {
		slog.Error("bind lookup failed", "user_id", accountID, "error", err)
		return false
	}
	if bind == nil || !bind.IsVerified {
		slog.Debug("denied: bind not verified", "user_id", accountID)
		return false
	}
	return true
}

func identityTerms(deviceID string, account *models.Account) []string {
	terms := []string{deviceID}
	if account != nil {
		terms = append(terms, account.Username)
	}
	return terms
}
