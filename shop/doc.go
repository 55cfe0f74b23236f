// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package shop implements the in-game coin shop.

Five tabs exist: stages, avatars, consumable items, and the FMAX and EXTRA
stage packs. A purchase runs inside one store transaction with the
device row locked:

	coin, err := engine.Purchase(ctx, id, shop.TypeStage, 101)
	var rej *shop.Rejection
	if errors.As(err, &rej) {
		// already owned, insufficient coins, unknown item
	}

Ownership is checked against the merged entitlements of the linked
account, so a stage bought on one device is never sold again on another.
*/
package shop
