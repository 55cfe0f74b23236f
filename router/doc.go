// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes of the game server.

# Route Registration

NewRouter builds every handler from the services main creates and
returns the mux behind panic recovery, CORS and gzip:

	handler := router.NewRouter(router.Services{
		Deps:    deps,
		Cache:   cache,
		Release: tracker,
		Mailer:  m,
	})

# Endpoints

Game client (encrypted query string):

	GET  /start.php, /sync.php, /login_bonus.php
	GET  /result.php, /load.php      POST /save.php
	GET  /ttag.php                   POST /register/, /login/, /logout/, ...
	GET  /mission.php, /status.php, /ranking.php, /web_shop.php
	     /api/status/*, /api/ranking/*, /api/shop/*

Files:

	GET  /files/gc2/{token}/{folder}/{filename}
	GET  /files/{path...}
	POST /batch (when enabled)

Discord bot, web console and admin:

	POST /discord/bind
	GET  /login, /usercenter         POST /login/login, /usercenter/api
	GET  /admin, /admin/table, /admin/data
	POST /admin/table/{update,insert,delete}, /admin/data/save,
	     /admin/update_maintenance, /admin/release/refresh

Each game route names its gate (none, init or full) and the reject
function that answers refused requests.
*/
package router
