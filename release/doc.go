// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package release tracks the FMAX content release: the version string
// shipped in files/4max_ver.txt and the changelog feed shown in the shop.
// main loads it at startup and the admin panel refreshes it.
package release
