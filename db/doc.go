// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections and creates the schema.

# Connecting

Open selects a driver from DATABASE_TYPE and pings the server:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

Supported types:

  - sqlite: modernc.org/sqlite, single connection, foreign keys enabled
  - postgres: github.com/lib/pq
  - pgx: github.com/jackc/pgx/v5/stdlib

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The statements use only syntax PostgreSQL and SQLite share, so the same
schema backs development, tests and production.

# Tables

  - topic: board and starter for each forum topic plus its poll reference
  - poll: poll metadata, lock state, guest counter, reset stamp, revision
  - poll_choice: choices with vote tallies (votes >= 0 enforced by CHECK)
  - poll_vote: one row per (poll, member, choice)
  - capability_grant, board_moderator: data for the SQL permission oracle
  - moderation_log: poll moderation actions
*/
package db
