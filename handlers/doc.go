// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP handlers of the game server.

# Handler Types

Every handler embeds Deps, the collaborators built once in main:

  - GameHandler: start, sync, login bonus and the static client endpoints
  - RankingHandler: result submission, leaderboards, titles and missions
  - ShopHandler: the in-game web shop
  - AccountHandler: the TAITO ID pages (register, login, resets, binds)
  - SaveHandler: cloud save upload and download
  - FileHandler: asset downloads and batch manifests
  - DiscordHandler: the bind bot endpoint
  - WebHandler: the player web console
  - AdminHandler: the admin panel

Handlers are created with constructor functions:

	deps, err := handlers.NewDeps(db, cfg)
	gameHandler := handlers.NewGameHandler(deps)

# Game Requests

Game routes run behind the middleware identity stage, which decrypts the
query string, resolves the device and linked account, and applies the
route's access gate. Handlers read the result with caller(r).

A refused request is answered in the route's own format by one of the
Reject functions:

	RejectXML      - launch, result and bonus endpoints
	RejectSave     - load.php and save.php
	RejectJSON     - the web view JSON APIs
	RejectInform   - the web view HTML shells
	RejectAccount  - the TAITO ID form posts

# Errors

Store failures are logged with slog and answered with the route's
internal-error reply. Validation failures are answered with HTTP 200 and a
readable message where the client expects one.
*/
package handlers
