// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/danielhkuo/taiyo/models"
)

const accountColumns = `id, username, password_hash, save_crc, save_timestamp, save_id, coin_mp, title, avatar,
	mobile_delta, arcade_delta, total_delta, created_at, updated_at`

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	var crc, saveID sql.NullString
	var saved sql.NullTime

	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &crc, &saved, &saveID, &a.CoinMP, &a.Title, &a.Avatar,
		&a.MobileDelta, &a.ArcadeDelta, &a.TotalDelta, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if crc.Valid {
		a.SaveCRC = &crc.String
	}
	if saved.Valid {
		a.SaveTimestamp = &saved.Time
	}
	if saveID.Valid {
		a.SaveID = &saveID.String
	}
	return &a, nil
}

func (s *Store) accountWhere(ctx context.Context, where string, arg any) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

// Account returns the account, or nil when it does not exist.
func (s *Store) Account(ctx context.Context, id int64) (*models.Account, error) {
	return s.accountWhere(ctx, `id = $1`, id)
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.accountWhere(ctx, `username = $1`, username)
}

func (s *Store) AccountBySaveID(ctx context.Context, saveID string) (*models.Account, error) {
	return s.accountWhere(ctx, `save_id = $1`, saveID)
}

// AccountsByIDs loads several accounts in one query. Missing ids are
// absent from the map.
func (s *Store) AccountsByIDs(ctx context.Context, ids []int64) (map[int64]*models.Account, error) {
	out := make(map[int64]*models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// CreateAccount registers an account and logs deviceID into it.
func (s *Store) CreateAccount(ctx context.Context, username, passwordHash, deviceID string, limit int) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO accounts (username, password_hash)
			VALUES ($1, $2)
			RETURNING id
		`, username, passwordHash).Scan(&id)
		if uniqueViolation(err) {
			return ErrUsernameTaken
		}
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return linkDevice(ctx, tx, id, deviceID, limit)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) updateAccount(ctx context.Context, id int64, set string, args ...any) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET `+set+`, updated_at = NOW() WHERE id = $1`, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *Store) SetUsername(ctx context.Context, id int64, username string) error {
	err := s.updateAccount(ctx, id, `username = $2`, username)
	if uniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to set username: %w", err)
	}
	return err
}

func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	if err := s.updateAccount(ctx, id, `password_hash = $2`, hash); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return nil
}

func (s *Store) SetCoinMP(ctx context.Context, id int64, mp int) error {
	if err := s.updateAccount(ctx, id, `coin_mp = $2`, mp); err != nil {
		return fmt.Errorf("failed to set coin multiplier: %w", err)
	}
	return nil
}

// SetSave records a new upload: its checksum, a fresh save id and the time.
func (s *Store) SetSave(ctx context.Context, id int64, crc, saveID string, at time.Time) error {
	err := s.updateAccount(ctx, id, `save_crc = $2, save_id = $3, save_timestamp = $4`, crc, saveID, at)
	if uniqueViolation(err) {
		return ErrSaveIDTaken
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to record save: %w", err)
	}
	return err
}

// SetSaveMeta replaces the checksum and time of the account's save
// without touching its save id.
func (s *Store) SetSaveMeta(ctx context.Context, id int64, crc *string, at *time.Time) error {
	if err := s.updateAccount(ctx, id, `save_crc = $2, save_timestamp = $3`, crc, at); err != nil {
		return fmt.Errorf("failed to record save metadata: %w", err)
	}
	return nil
}
