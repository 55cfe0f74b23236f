// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/taiyo/models"
)

// SubmitResult keeps the account's best result for (song, mode). A new
// row is inserted on the first play; later plays replace it only with a
// strictly higher score. delta(old, new) is added to the account's
// counters in the same transaction, with old 0 for a first play. The id
// of the account's row is returned either way.
func (s *Store) SubmitResult(ctx context.Context, r *models.Result, delta func(old, new int64) models.Delta) (int64, error) {
	var rowID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var locked int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, r.UserID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}

		var oldScore int64
		err = tx.QueryRowContext(ctx, `
			SELECT id, score FROM results
			WHERE user_id = $1 AND song_id = $2 AND mode = $3
			ORDER BY score DESC, id
			LIMIT 1
		`, r.UserID, r.SongID, r.Mode).Scan(&rowID, &oldScore)

		var d models.Delta
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = tx.QueryRowContext(ctx, `
				INSERT INTO results (device_id, user_id, stts, song_id, mode, avatar, score,
				                     high_score, play_rslt, item, os, os_ver, ver)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				RETURNING id
			`, r.DeviceID, r.UserID, string(r.Stats), r.SongID, r.Mode, r.Avatar, r.Score,
				string(r.HighScore), string(r.PlayResult), r.Item, r.OS, r.OSVersion, r.Version,
			).Scan(&rowID)
			if err != nil {
				return fmt.Errorf("failed to insert result: %w", err)
			}
			d = delta(0, r.Score)
		case err != nil:
			return fmt.Errorf("failed to query result: %w", err)
		case r.Score > oldScore:
			_, err = tx.ExecContext(ctx, `
				UPDATE results
				SET device_id = $2, stts = $3, avatar = $4, score = $5, high_score = $6,
				    play_rslt = $7, item = $8, os = $9, os_ver = $10, ver = $11, created_at = NOW()
				WHERE id = $1
			`, rowID, r.DeviceID, string(r.Stats), r.Avatar, r.Score, string(r.HighScore),
				string(r.PlayResult), r.Item, r.OS, r.OSVersion, r.Version)
			if err != nil {
				return fmt.Errorf("failed to update result: %w", err)
			}
			d = delta(oldScore, r.Score)
		default:
			return nil
		}

		if d == (models.Delta{}) {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts
			SET mobile_delta = mobile_delta + $2, arcade_delta = arcade_delta + $3,
			    total_delta = total_delta + $4, updated_at = NOW()
			WHERE id = $1
		`, r.UserID, d.Mobile, d.Arcade, d.Total)
		if err != nil {
			return fmt.Errorf("failed to update ranking counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowID, nil
}

// SongRecords returns a song board ordered by score, ties by row id.
func (s *Store) SongRecords(ctx context.Context, songID, mode int) ([]models.RankRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(user_id, 0), score, avatar
		FROM results
		WHERE song_id = $1 AND mode = $2
		ORDER BY score DESC, id
	`, songID, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to query song board: %w", err)
	}
	defer rows.Close()

	records := []models.RankRecord{}
	for rows.Next() {
		var rec models.RankRecord
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Score, &rec.Avatar); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

var categoryColumns = map[int]string{
	models.CategoryTotal:  "total_delta",
	models.CategoryMobile: "mobile_delta",
	models.CategoryArcade: "arcade_delta",
}

// CategoryRecords returns the accounts with a positive counter for the
// category, highest first.
func (s *Store) CategoryRecords(ctx context.Context, category int) ([]models.RankRecord, error) {
	column, ok := categoryColumns[category]
	if !ok {
		return nil, fmt.Errorf("unknown ranking category %d", category)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, `+column+`, avatar, username, title
		FROM accounts
		WHERE `+column+` > 0
		ORDER BY `+column+` DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category board: %w", err)
	}
	defer rows.Close()

	records := []models.RankRecord{}
	for rows.Next() {
		var rec models.RankRecord
		if err := rows.Scan(&rec.ID, &rec.Score, &rec.Avatar, &rec.Username, &rec.Title); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		rec.AccountID = rec.ID
		records = append(records, rec)
	}
	return records, rows.Err()
}
