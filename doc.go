// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the topic polls API server.

Topic polls attach a single poll to a forum topic: members vote for up to
max_votes choices, optionally change their vote, guests may vote when the
poll allows it, and the poll's starter or a moderator can edit, lock,
reset or remove it.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=polls.db GUEST_TOKEN_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -guest-salt ...

A .env file in the working directory is loaded first.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - GUEST_TOKEN_SALT (-guest-salt): Secret for guest vote token HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or pgx (default: sqlite)
  - REDIS_URL (-redis): Share form tokens between instances
  - KAFKA_BROKERS, KAFKA_TOPIC: Stream the moderation log
  - IP_HASH_SALT, FORM_TOKEN_TTL, STORE_RETRIES

# Architecture

  - polls: Permission evaluation, lock state machine, editor, vote tallier,
    guest vote tracking and the Service that runs each action
  - store: SQL persistence with per-poll transactions and atomic tallies
  - forum: Permission oracle, form token sessions, moderation log
  - handlers: HTTP handlers, one per poll action
  - router: chi routes, /health and /metrics
  - middleware: CORS, logging, JSON helpers, principal extraction
  - metrics: Prometheus counters
  - models: Domain, request and response types
  - auth: Token signing and generation
  - db: Driver selection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
