// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/taiyo/models"
)

// ErrWebDenied is returned when a console login hits a revoked session.
var ErrWebDenied = errors.New("web access revoked")

const webColumns = `id, user_id, permission, web_token, last_save_export, created_at, updated_at`

func scanWebSession(row scanner) (*models.WebSession, error) {
	var w models.WebSession
	err := row.Scan(&w.ID, &w.UserID, &w.Permission, &w.Token, &w.LastSaveExport, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// WebSession returns the console session for a token, or nil.
func (s *Store) WebSession(ctx context.Context, token string) (*models.WebSession, error) {
	if token == "" {
		return nil, nil
	}
	w, err := scanWebSession(s.db.QueryRowContext(ctx,
		`SELECT `+webColumns+` FROM webs WHERE web_token = $1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query web session: %w", err)
	}
	return w, nil
}

// StartWebSession stores token as the account's console token. A first
// login creates the session with user permission; a session whose
// permission was revoked is left alone and ErrWebDenied is returned.
func (s *Store) StartWebSession(ctx context.Context, accountID int64, token string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webs (user_id, permission, web_token, last_save_export)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET web_token = EXCLUDED.web_token, updated_at = NOW()
		WHERE webs.permission >= $2
	`, accountID, models.PermissionUser, token)
	if err != nil {
		return fmt.Errorf("failed to start web session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to start web session: %w", err)
	}
	if n == 0 {
		return ErrWebDenied
	}
	return nil
}

// SetLastExport records when the account last exported its data.
func (s *Store) SetLastExport(ctx context.Context, accountID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webs SET last_save_export = $2, updated_at = NOW() WHERE user_id = $1`,
		accountID, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return expectRow(res)
}

// ConsumeBatchToken spends one use of a batch download token.
func (s *Store) ConsumeBatchToken(ctx context.Context, token string, now time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var id int64
		var expireAt time.Time
		var usesLeft int
		err := tx.QueryRowContext(ctx, `
			SELECT id, expire_at, uses_left FROM batch_tokens
			WHERE batch_token = $1
			FOR UPDATE
		`, token).Scan(&id, &expireAt, &usesLeft)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("failed to lock batch token: %w", err)
		}
		if expireAt.Before(now) {
			return ErrTokenExpired
		}
		if usesLeft <= 0 {
			return ErrTokenExhausted
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE batch_tokens SET uses_left = uses_left - 1, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to consume batch token: %w", err)
		}
		return nil
	})
}

// BatchTokenUsable reports whether token may still fetch files. A token
// stays usable for file downloads after its last manifest use, until it
// expires or is set below zero.
func (s *Store) BatchTokenUsable(ctx context.Context, token string, now time.Time) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM batch_tokens
			WHERE batch_token = $1 AND uses_left > -1 AND expire_at > $2
		)
	`, token, now).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to query batch token: %w", err)
	}
	return ok, nil
}
