// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package crypt implements the AES-256-CBC codec used by the game client
for its query-string payloads.

The key and IV are fixed constants taken from the client. Encryption pads
with zero bytes to a 16-byte boundary and returns lowercase hex:

	q := crypt.Default.Encrypt([]byte("vid=abc"))

Decrypt returns the padded plaintext. Open applies the client's read
convention (drop the terminator byte and any zero padding) and is what the
field parser uses:

	plain, err := crypt.Default.Open(q)
	if errors.Is(err, crypt.ErrMalformed) {
		// treat as "no fields"
	}

Because padding is zeros, a plaintext that itself ends in zero bytes does
not survive a round trip unchanged.
*/
package crypt
