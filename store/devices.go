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

const deviceColumns = `device_id, user_id, my_stage, my_avatar, item, daily_day, daily_timestamp,
	coin, lvl, title, avatar, created_at, updated_at, last_login_at, bind_token`

func scanDevice(row scanner) (*models.Device, error) {
	var d models.Device
	var userID sql.NullInt64
	var stages, avatars, items pq.Int64Array
	var lastLogin sql.NullTime
	var bindToken sql.NullString

	err := row.Scan(
		&d.DeviceID, &userID, &stages, &avatars, &items, &d.DailyDay, &d.DailyTimestamp,
		&d.Coin, &d.Level, &d.Title, &d.Avatar, &d.CreatedAt, &d.UpdatedAt, &lastLogin, &bindToken,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		d.UserID = &userID.Int64
	}
	if lastLogin.Valid {
		d.LastLoginAt = &lastLogin.Time
	}
	if bindToken.Valid {
		d.BindToken = &bindToken.String
	}
	d.Stages, d.Avatars, d.Items = ints(stages), ints(avatars), ints(items)
	return &d, nil
}

// Device returns the device, or nil when it does not exist.
func (s *Store) Device(ctx context.Context, deviceID string) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return d, nil
}

// DeviceByBindToken returns the device holding a download token.
func (s *Store) DeviceByBindToken(ctx context.Context, token string) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE bind_token = $1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device by bind token: %w", err)
	}
	return d, nil
}

func (s *Store) DevicesForAccount(ctx context.Context, accountID int64) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY device_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// NewDevice is the starting state of a device seen for the first time.
type NewDevice struct {
	DeviceID string
	Stages   []int
	Avatars  []int
	Coin     int
	Now      time.Time
}

// CreateDevice inserts the device unless it already exists and reports
// whether this call created it.
func (s *Store) CreateDevice(ctx context.Context, nd NewDevice) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, my_stage, my_avatar, item, daily_day, daily_timestamp,
		                     coin, lvl, title, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, '{}', 1, $4, $5, 1, 1, 1, $4, $4)
		ON CONFLICT (device_id) DO NOTHING
	`, nd.DeviceID, int64s(nd.Stages), int64s(nd.Avatars), nd.Now, nd.Coin)
	if err != nil {
		return false, fmt.Errorf("failed to create device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create device: %w", err)
	}
	return n == 1, nil
}

// UpdateWallet loads the device's wallet under a row lock, lets fn change
// it and writes it back in the same transaction. An error from fn rolls
// the transaction back and is returned unchanged.
//
// With merged set and the device linked, the wallet's stages and avatars
// are the union over all of the account's devices; whatever fn leaves
// there is written to this device.
func (s *Store) UpdateWallet(ctx context.Context, deviceID string, merged bool, fn func(*models.Wallet) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var w models.Wallet
		var userID sql.NullInt64
		var stages, avatars, items pq.Int64Array

		err := tx.QueryRowContext(ctx, `
			SELECT device_id, user_id, coin, my_stage, my_avatar, item, daily_day, daily_timestamp, lvl, avatar
			FROM devices
			WHERE device_id = $1
			FOR UPDATE
		`, deviceID).Scan(
			&w.DeviceID, &userID, &w.Coin, &stages, &avatars, &items,
			&w.DailyDay, &w.DailyTimestamp, &w.Level, &w.Avatar,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock device: %w", err)
		}
		w.Stages, w.Avatars, w.Items = ints(stages), ints(avatars), ints(items)

		if userID.Valid {
			w.AccountID = &userID.Int64
			if merged {
				if err := mergeEntitlements(ctx, tx, &w, userID.Int64); err != nil {
					return err
				}
			}
		}

		if err := fn(&w); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE devices
			SET coin = $2, my_stage = $3, my_avatar = $4, item = $5,
			    daily_day = $6, daily_timestamp = $7, lvl = $8, avatar = $9, updated_at = NOW()
			WHERE device_id = $1
		`, deviceID, w.Coin, int64s(w.Stages), int64s(w.Avatars), int64s(w.Items),
			w.DailyDay, w.DailyTimestamp, w.Level, w.Avatar)
		if err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}
		return nil
	})
}

func mergeEntitlements(ctx context.Context, tx *sql.Tx, w *models.Wallet, accountID int64) error {
	var stages, avatars pq.Int64Array
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(ARRAY(SELECT DISTINCT unnest(my_stage) FROM devices WHERE user_id = $1 ORDER BY 1), '{}'),
		       COALESCE(ARRAY(SELECT DISTINCT unnest(my_avatar) FROM devices WHERE user_id = $1 ORDER BY 1), '{}')
	`, accountID).Scan(&stages, &avatars)
	if err != nil {
		return fmt.Errorf("failed to merge entitlements: %w", err)
	}
	w.Stages, w.Avatars = ints(stages), ints(avatars)
	return nil
}

// TakePendingItems returns and clears the device's undelivered items.
func (s *Store) TakePendingItems(ctx context.Context, deviceID string) ([]int, error) {
	var items pq.Int64Array
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT item FROM devices WHERE device_id = $1 FOR UPDATE`, deviceID).Scan(&items)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock device items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE devices SET item = '{}', updated_at = NOW() WHERE device_id = $1`, deviceID)
		if err != nil {
			return fmt.Errorf("failed to clear device items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ints(items), nil
}

// SetBindToken stores a new download token on the device.
func (s *Store) SetBindToken(ctx context.Context, deviceID, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET bind_token = $2, updated_at = NOW() WHERE device_id = $1`, deviceID, token)
	if err != nil {
		return fmt.Errorf("failed to set bind token: %w", err)
	}
	return expectRow(res)
}

// SetTitle writes the title to the device and, when linked, the account.
func (s *Store) SetTitle(ctx context.Context, deviceID string, accountID *int64, title int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE devices SET title = $2, updated_at = NOW() WHERE device_id = $1`, deviceID, title)
		if err != nil {
			return fmt.Errorf("failed to set device title: %w", err)
		}
		if err := expectRow(res); err != nil {
			return err
		}
		if accountID == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE accounts SET title = $2, updated_at = NOW() WHERE id = $1`, *accountID, title)
		if err != nil {
			return fmt.Errorf("failed to set account title: %w", err)
		}
		return nil
	})
}

// LinkDevice logs the device into the account. When the account is then
// logged in on more than limit devices, the ones with the oldest login
// are logged out.
func (s *Store) LinkDevice(ctx context.Context, accountID int64, deviceID string, limit int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return linkDevice(ctx, tx, accountID, deviceID, limit)
	})
}

func linkDevice(ctx context.Context, tx *sql.Tx, accountID int64, deviceID string, limit int) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE devices SET user_id = $1, last_login_at = NOW(), updated_at = NOW()
		WHERE device_id = $2
	`, accountID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to link device: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE devices SET user_id = NULL, updated_at = NOW()
		WHERE device_id IN (
			SELECT device_id FROM devices
			WHERE user_id = $1
			ORDER BY last_login_at DESC NULLS LAST, device_id
			OFFSET $2
		)
	`, accountID, limit)
	if err != nil {
		return fmt.Errorf("failed to trim logins: %w", err)
	}
	return nil
}

// UnlinkDevice logs the device out of its account.
func (s *Store) UnlinkDevice(ctx context.Context, deviceID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE devices SET user_id = NULL, updated_at = NOW() WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to unlink device: %w", err)
	}
	return nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
