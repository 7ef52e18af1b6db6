// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL sticks to the subset PostgreSQL and SQLite share.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Topics (owned by the forum, mirrored here for board lookup and the poll reference)
CREATE TABLE IF NOT EXISTS topic (
    id BIGINT PRIMARY KEY,
    board_id BIGINT NOT NULL,
    starter_member_id BIGINT NOT NULL DEFAULT 0,
    poll_id TEXT
);

-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    topic_id BIGINT NOT NULL UNIQUE REFERENCES topic(id) ON DELETE CASCADE,
    member_id BIGINT NOT NULL DEFAULT 0,
    poster_name TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    max_votes INTEGER NOT NULL DEFAULT 1 CHECK (max_votes >= 1),
    hide_results INTEGER NOT NULL DEFAULT 0 CHECK (hide_results IN (0, 1, 2, 3)),
    change_vote BOOLEAN NOT NULL DEFAULT FALSE,
    guest_vote BOOLEAN NOT NULL DEFAULT FALSE,
    expire_time BIGINT NOT NULL DEFAULT 0,
    voting_locked INTEGER NOT NULL DEFAULT 0 CHECK (voting_locked IN (0, 1, 2)),
    num_guest_voters INTEGER NOT NULL DEFAULT 0 CHECK (num_guest_voters >= 0),
    reset_at BIGINT NOT NULL DEFAULT 0,
    revision BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL
);

-- Choices
CREATE TABLE IF NOT EXISTS poll_choice (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    choice_id INTEGER NOT NULL,
    label TEXT NOT NULL,
    votes INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0),
    PRIMARY KEY (poll_id, choice_id)
);

-- Member votes
CREATE TABLE IF NOT EXISTS poll_vote (
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    member_id BIGINT NOT NULL,
    choice_id INTEGER NOT NULL,
    PRIMARY KEY (poll_id, member_id, choice_id)
);

CREATE INDEX IF NOT EXISTS idx_poll_vote_member ON poll_vote(poll_id, member_id);

-- Permission grants (board_id 0 applies to every board, member_id 0 is guests)
CREATE TABLE IF NOT EXISTS capability_grant (
    member_id BIGINT NOT NULL,
    board_id BIGINT NOT NULL,
    capability TEXT NOT NULL,
    PRIMARY KEY (member_id, board_id, capability)
);

CREATE TABLE IF NOT EXISTS board_moderator (
    board_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL,
    PRIMARY KEY (board_id, member_id)
);

-- Moderation log
CREATE TABLE IF NOT EXISTS moderation_log (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    topic_id BIGINT NOT NULL,
    member_id BIGINT NOT NULL DEFAULT 0,
    details TEXT NOT NULL DEFAULT '{}',
    logged_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_moderation_log_topic ON moderation_log(topic_id);
`
