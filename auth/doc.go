// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides secrets, tokens, and password utilities.

# Passwords

Passwords are hashed with bcrypt:

	hash, err := auth.HashPassword(pw)
	ok := auth.CheckPassword(hash, pw)

# Tokens

  - GenerateWebToken: 64 random bytes as hex, the web console bearer token
  - GenerateBindToken: 64 random bytes as URL-safe base64, the rotating
    download token of a bound device
  - GenerateSaveID: 24 base62 characters, the public save identifier

# Bind Codes

Email binds get a TOTP secret with a ten-minute period; the six-digit code
for the issue time is mailed and later checked with CheckVerificationCode.

Discord binds use DiscordBindCode, a CRC-32 over the username, account id,
password hash and a server salt. The bot echoes it back to prove the
player controls the account.

# Checksums

Checksum returns the decimal CRC-32 the client uses for save files.
*/
package auth
