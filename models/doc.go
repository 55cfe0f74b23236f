// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request, and response types.

# Domain Types

Rows of the relational store:

  - Account: registered player, ranking counters, save metadata
  - Device: client installation, entitlements, coins, login streak
  - Bind: email or Discord link with its verification state
  - Result: best score per account, song and mode
  - WebSession: web console token and permission level
  - BatchToken: limited-use bulk download token

Derived values:

  - Wallet: device fields mutated together under a row lock
  - Delta: ranking counter increments from one result
  - RankRecord: a cached leaderboard row
  - Notice: maintenance notice shown at start

# Envelopes

Game web views answer with APIResponse ({state, message, data}); the web
console and admin panel answer with ConsoleResponse ({status, message}).

# Constants

Permission levels:

	PermissionNone  = 0
	PermissionUser  = 1
	PermissionAdmin = 2

Total ranking categories:

	CategoryTotal  = 0
	CategoryMobile = 1
	CategoryArcade = 2
*/
package models
