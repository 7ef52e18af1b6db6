// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package sentinel holds infrastructure-level sentinel errors.
//
// Stores return these (usually wrapped) so the poll service can translate
// them into domain errors without importing a storage package:
//   - ErrNotFound: row does not exist
//   - ErrConflict: unique constraint or compare-and-set lost
//   - ErrUnavailable: connection-level failure, safe to retry
package sentinel

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
