// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package identity resolves the caller of a game request.

Every game payload carries a vid field naming the device. The resolver
loads that device and, when the device is linked, its account:

	id, err := resolver.Resolve(ctx, f)
	if errors.Is(err, identity.ErrNoDevice) {
		// invalid request
	}

The middleware stores the result on the request context so handlers never
resolve twice:

	id, _ := identity.FromContext(r.Context())

# Entitlements

A linked account owns the union of the stages and avatars of all its
devices. Display responses cap the stage list at 500 entries; ownership
checks never cap.
*/
package identity
