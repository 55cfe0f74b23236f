// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db creates the PostgreSQL schema.

	if err := db.CreateSchema(dbConn); err != nil {
		return err
	}

Every statement uses IF NOT EXISTS, so CreateSchema runs on each start.

# Tables

  - accounts: registered players, save metadata, ranking counters
  - devices: per-install wallet (coins, stages, avatars, pending items), linked account
  - results: best score per account, song and mode
  - whitelists, blacklists: access lists matched against device ids and usernames
  - binds: email or Discord verification per account
  - batch_tokens: tokens for bulk asset downloads
  - webs: web console sessions and permissions
  - logs: bind-mode download ledger for the daily quota

# Relationships

	accounts 1──* devices   (ON DELETE SET NULL)
	accounts 1──* results   (ON DELETE CASCADE)
	accounts 1──1 binds
	accounts 1──1 webs

Entitlement columns (my_stage, my_avatar, item) are INTEGER[].
Result blobs (stts, high_score, play_rslt) are JSONB.
*/
package db
