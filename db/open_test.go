// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"path/filepath"
	"testing"
)

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain path", "polls.db", "file:polls.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file uri", "file:polls.db", "file:polls.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"existing query", "file:polls.db?mode=rwc", "file:polls.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"explicit pragmas kept", "file:x.db?_pragma=journal_mode(wal)", "file:x.db?_pragma=journal_mode(wal)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sqliteDSN(tt.in); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpenAndCreateSchema(t *testing.T) {
	conn, err := Open(TypeSQLite, filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	// Twice, to prove idempotence
	for i := 0; i < 2; i++ {
		if err := CreateSchema(conn); err != nil {
			t.Fatalf("CreateSchema() run %d error = %v", i+1, err)
		}
	}

	for _, table := range []string{"topic", "poll", "poll_choice", "poll_vote", "capability_grant", "board_moderator", "moderation_log"} {
		var count int
		err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&count)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestOpenUnsupportedType(t *testing.T) {
	if _, err := Open("oracle", "whatever"); err == nil {
		t.Error("Expected error for unsupported database type")
	}
}
