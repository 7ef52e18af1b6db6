// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token signing and generation utilities.

# Signed Tokens

SignToken wraps an arbitrary payload with an HMAC-SHA256 so it can be handed
to a client and trusted when it comes back:

	token := auth.SignToken(payload, secret)
	payload, err := auth.VerifyToken(token, secret)

The format is "<payload>.<mac>", both URL-safe base64 without padding. The
payload is not encrypted. Guest vote tokens use this format.

# Form Tokens

Form tokens are random 24-byte (192-bit) values used once per submission:

	token, err := auth.GenerateFormToken()

# IP Hashing

For privacy-preserving moderation logs:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
