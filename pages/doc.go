// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package pages renders the small HTML pages shown in the game's web
// views and the web console. Templates are embedded at build time.
package pages
