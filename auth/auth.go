// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// sign returns the unpadded URL-safe HMAC-SHA256 of data.
func sign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// SignToken encodes payload as "<payload>.<mac>", both URL-safe base64.
// The payload is readable by anyone; the MAC only proves we issued it.
func SignToken(payload []byte, secret string) string {
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + sign([]byte(body), secret)
}

// VerifyToken checks the MAC of a SignToken value and returns the payload.
func VerifyToken(token, secret string) ([]byte, error) {
	body, mac, ok := strings.Cut(token, ".")
	if !ok || body == "" || mac == "" {
		return nil, ErrInvalidToken
	}
	expected := sign([]byte(body), secret)
	if !hmac.Equal([]byte(mac), []byte(expected)) {
		return nil, ErrInvalidSignature
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return payload, nil
}

// GenerateFormToken creates a random single-use token for a form submission
func GenerateFormToken() (string, error) {
	b := make([]byte, 24) // 192 bits
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate form token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// First 8 bytes are plenty to correlate log lines
	return hex.EncodeToString(sum[:8])
}
