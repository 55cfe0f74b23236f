// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Precedence

Every setting resolves in this order:

 1. CLI flag
 2. Environment variable
 3. .env file (ENV_FILE, default ./.env)
 4. Built-in default

# Main Settings

	-p               PORT                  Server port (default: 9068)
	-d               DATABASE_URL          PostgreSQL connection string (required)
	-host            HOST                  Public host in asset URLs (default: 127.0.0.1)
	-override-host   OVERRIDE_HOST         Full base URL, replaces host and port
	-auth            AUTHORIZATION_NEEDED  Whitelist-only service
	-auth-mode       AUTHORIZATION_MODE    0 none, 1 email, 2 discord
	-logins          SIMULTANEOUS_LOGINS   Devices per account (default: 2)
	-redis           REDIS_URL             Ranking cache in Redis instead of memory
	-log-level       LOG_LEVEL             debug, info, warn, error

Prices, paths, SMTP and batch settings follow the same pattern; run with
-h for the full list.

# Validation

ParseFlags returns an error when:

  - DATABASE_URL is missing
  - AUTHORIZATION_MODE is outside 0..2
  - discord mode lacks BIND_SALT or DISCORD_BOT_SECRET
  - a numeric environment variable does not parse

# Derived Settings

BaseURL, Policy, Prices and Mailer convert the flat settings into what
the handlers and engines take:

	evaluator := policy.NewEvaluator(cfg.Policy(), st)
	shopEngine := shop.NewEngine(st, resolver, cat, cfg.Prices(), tracker)
*/
package cliparse
