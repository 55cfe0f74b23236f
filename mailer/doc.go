// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package mailer sends email bind verification codes over SMTP.
//
// Ports 25 and 80 are plain SMTP; every other port uses implicit TLS. The
// message language is matched from the caller's Accept-Language header.
package mailer
