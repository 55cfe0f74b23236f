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

// Whitelisted reports whether any of terms is on the whitelist.
func (s *Store) Whitelisted(ctx context.Context, terms ...string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelists WHERE device_id = ANY($1))`, pq.Array(terms)).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to query whitelist: %w", err)
	}
	return found, nil
}

// Blacklisted reports whether any of terms is banned.
func (s *Store) Blacklisted(ctx context.Context, terms ...string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklists WHERE ban_terms = ANY($1))`, pq.Array(terms)).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return found, nil
}

const bindColumns = `id, user_id, bind_account, bind_code, bind_secret, is_verified, bind_date`

func scanBind(row scanner) (*models.Bind, error) {
	var b models.Bind
	var secret sql.NullString
	var verified int
	if err := row.Scan(&b.ID, &b.UserID, &b.Account, &b.Code, &secret, &verified, &b.BindDate); err != nil {
		return nil, err
	}
	if secret.Valid {
		b.Secret = &secret.String
	}
	b.IsVerified = verified == 1
	return &b, nil
}

// Bind returns the account's bind, or nil when it has none.
func (s *Store) Bind(ctx context.Context, accountID int64) (*models.Bind, error) {
	b, err := scanBind(s.db.QueryRowContext(ctx,
		`SELECT `+bindColumns+` FROM binds WHERE user_id = $1`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bind: %w", err)
	}
	return b, nil
}

// BindByAccount returns the bind for an email address or Discord
// account, or nil.
func (s *Store) BindByAccount(ctx context.Context, bindAccount string) (*models.Bind, error) {
	b, err := scanBind(s.db.QueryRowContext(ctx,
		`SELECT `+bindColumns+` FROM binds WHERE bind_account = $1`, bindAccount))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bind: %w", err)
	}
	return b, nil
}

// SaveBind records an unverified bind for the account, replacing any
// pending one. The bind date restarts at at.
func (s *Store) SaveBind(ctx context.Context, accountID int64, bindAccount, code, secret string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO binds (user_id, bind_account, bind_code, bind_secret, is_verified, bind_date)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET bind_account = EXCLUDED.bind_account, bind_code = EXCLUDED.bind_code,
		    bind_secret = EXCLUDED.bind_secret, is_verified = 0, bind_date = EXCLUDED.bind_date
	`, accountID, bindAccount, code, secret, at)
	if uniqueViolation(err) {
		return ErrBindTaken
	}
	if err != nil {
		return fmt.Errorf("failed to save bind: %w", err)
	}
	return nil
}

// VerifyBind marks the bind verified and stamps the verification time.
func (s *Store) VerifyBind(ctx context.Context, bindID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE binds SET is_verified = 1, bind_date = $2 WHERE id = $1`, bindID, at)
	if err != nil {
		return fmt.Errorf("failed to verify bind: %w", err)
	}
	return expectRow(res)
}

// LogDownload appends a served file to the account's download ledger.
func (s *Store) LogDownload(ctx context.Context, accountID int64, filename string, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (user_id, filename, filesize, timestamp) VALUES ($1, $2, $3, NOW())`,
		accountID, filename, size)
	if err != nil {
		return fmt.Errorf("failed to log download: %w", err)
	}
	return nil
}

// DownloadedBytes sums the account's downloads since the given time.
func (s *Store) DownloadedBytes(ctx context.Context, accountID int64, since time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(filesize), 0) FROM logs WHERE user_id = $1 AND timestamp >= $2`,
		accountID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum downloads: %w", err)
	}
	return total, nil
}
