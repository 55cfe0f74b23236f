// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package fields turns the client's encrypted query string into form fields.

The raw query is a hex AES payload, optionally followed by a cache-busting
&_=<digits> token. Parse strips the token, decrypts with the crypt codec
and form-decodes the plaintext:

	f, raw := fields.Parse(r.URL.RawQuery)
	if f.Empty() {
		// invalid request
	}
	deviceID := f.Get("vid")

Repeated keys keep their order; callers read the first occurrence. The raw
query is returned unchanged so pages can embed it in follow-up links.
*/
package fields
