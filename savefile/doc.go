// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package savefile stores account cloud saves as one file per account
// under a directory: {dir}/{account id}.dat.
package savefile
