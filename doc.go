// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the taiyo game server.

taiyo is a backend for a rhythm game client: device and account
identity, cloud saves, leaderboards, a coin shop, login bonuses, asset
downloads and an administrative web panel.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... go run .

Or with flags:

	go run . -p 9068 -d "postgres://..."

A .env file in the working directory is read first and never overrides
variables that are already set.

# Configuration

Required settings:

  - DATABASE_URL (-d): PostgreSQL connection string
  - BIND_SALT and DISCORD_BOT_SECRET when AUTHORIZATION_MODE is 2

Common optional settings:

  - PORT (-p): Server port (default: 9068)
  - HOST, PUBLIC_PORT, OVERRIDE_HOST: asset URL base
  - AUTHORIZATION_NEEDED, AUTHORIZATION_MODE: whitelist and bind policy
  - SMTP_HOST, SMTP_USER, SMTP_PASSWORD: email binds
  - REDIS_URL: share the ranking cache between instances
  - LOG_LEVEL, LOG_FORMAT, LOG_FILE: logging

See cliparse for the full list.

# Architecture

  - handlers: HTTP handlers per feature area
  - router: route table and global middleware
  - middleware: logging, recovery, CORS, gzip, the identity stage
  - store: all SQL, db: schema creation
  - identity, policy: caller resolution and access decisions
  - ranking, rankcache, shop, catalog: game rules and content
  - crypt, fields, gamexml, pages: client codec and response formats
  - auth, mailer, savefile, release, admintable, logging, cliparse
*/
package main
