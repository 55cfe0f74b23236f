// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Accounts
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    save_crc TEXT,
    save_timestamp TIMESTAMPTZ,
    save_id TEXT UNIQUE,
    coin_mp INTEGER NOT NULL DEFAULT 1,
    title INTEGER NOT NULL DEFAULT 1,
    avatar INTEGER NOT NULL DEFAULT 1,
    mobile_delta BIGINT NOT NULL DEFAULT 0,
    arcade_delta BIGINT NOT NULL DEFAULT 0,
    total_delta BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Devices
CREATE TABLE IF NOT EXISTS devices (
    device_id TEXT PRIMARY KEY,
    user_id BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
    my_stage INTEGER[] NOT NULL DEFAULT '{}',
    my_avatar INTEGER[] NOT NULL DEFAULT '{}',
    item INTEGER[] NOT NULL DEFAULT '{}',
    daily_day INTEGER NOT NULL DEFAULT 1,
    daily_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    coin INTEGER NOT NULL DEFAULT 0,
    lvl INTEGER NOT NULL DEFAULT 1,
    title INTEGER NOT NULL DEFAULT 1,
    avatar INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_login_at TIMESTAMPTZ,
    bind_token TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_devices_user_id ON devices(user_id);

-- Results
CREATE TABLE IF NOT EXISTS results (
    id BIGSERIAL PRIMARY KEY,
    device_id TEXT NOT NULL,
    user_id BIGINT REFERENCES accounts(id) ON DELETE CASCADE,
    stts JSONB NOT NULL DEFAULT '[]',
    song_id INTEGER NOT NULL,
    mode INTEGER NOT NULL,
    avatar INTEGER NOT NULL DEFAULT 1,
    score BIGINT NOT NULL,
    high_score JSONB NOT NULL DEFAULT '[]',
    play_rslt JSONB NOT NULL DEFAULT '[]',
    item INTEGER NOT NULL DEFAULT 0,
    os TEXT NOT NULL DEFAULT '',
    os_ver TEXT NOT NULL DEFAULT '',
    ver TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_results_board ON results(song_id, mode, score DESC);
CREATE INDEX IF NOT EXISTS idx_results_user ON results(user_id, song_id, mode);

-- Access lists
CREATE TABLE IF NOT EXISTS whitelists (
    id BIGSERIAL PRIMARY KEY,
    device_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blacklists (
    id BIGSERIAL PRIMARY KEY,
    ban_terms TEXT NOT NULL UNIQUE,
    reason TEXT
);

-- Email and Discord binds
CREATE TABLE IF NOT EXISTS binds (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
    bind_account TEXT NOT NULL UNIQUE,
    bind_code TEXT NOT NULL,
    bind_secret TEXT,
    is_verified INTEGER NOT NULL DEFAULT 0,
    bind_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Batch download tokens
CREATE TABLE IF NOT EXISTS batch_tokens (
    id BIGSERIAL PRIMARY KEY,
    batch_token TEXT NOT NULL UNIQUE,
    expire_at TIMESTAMPTZ NOT NULL,
    uses_left INTEGER NOT NULL DEFAULT 1,
    auth_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Web console sessions
CREATE TABLE IF NOT EXISTS webs (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
    permission INTEGER NOT NULL DEFAULT 1,
    web_token TEXT NOT NULL UNIQUE,
    last_save_export BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Download ledger
CREATE TABLE IF NOT EXISTS logs (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    filename TEXT NOT NULL,
    filesize BIGINT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_logs_user_time ON logs(user_id, timestamp);
`
