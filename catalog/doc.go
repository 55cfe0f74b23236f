// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package catalog loads the static game data (songs, avatars, items,
// titles, starter sets, level unlocks, and the login bonus calendar) from a
// YAML document. A small starter catalog is embedded for development.
package catalog
