// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file can seed the environment first; variables already set win:

	if err := cliparse.LoadDotEnv(".env"); err != nil { ... }

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Database connection string or SQLite path (required)
  - DatabaseType: sqlite (default), postgres (lib/pq) or pgx (pgx stdlib)
  - GuestTokenSalt: Secret for guest vote token HMAC (required)
  - IPHashSalt: Secret for moderation log IP hashes (default: GuestTokenSalt)
  - RedisURL: Shared form token store (optional, in-memory otherwise)
  - KafkaBrokers, KafkaTopic: Moderation log stream (optional)
  - FormTokenTTL: Form token lifetime (default: 1h)
  - StoreRetries: Retries when the database is unavailable (default: 3)

# CLI Flags

	-p              Server port
	-d              Database URL
	-t              Database type
	-redis          Redis URL
	-kafka-brokers  Comma-separated brokers
	-kafka-topic    Moderation log topic
	-form-ttl       Form token lifetime
	-retries        Store retries
	-guest-salt     Guest token salt
	-ip-salt        IP hash salt

# Environment Variables

Flags fall back to environment variables:

	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t
	REDIS_URL        → -redis
	KAFKA_BROKERS    → -kafka-brokers
	KAFKA_TOPIC      → -kafka-topic (default poll-moderation when brokers are set)
	FORM_TOKEN_TTL   → -form-ttl
	STORE_RETRIES    → -retries
	GUEST_TOKEN_SALT → -guest-salt
	IP_HASH_SALT     → -ip-salt

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing or malformed:

  - DATABASE_URL must be provided
  - GUEST_TOKEN_SALT must be provided
  - DATABASE_TYPE must be sqlite, postgres or pgx
  - PORT, FORM_TOKEN_TTL and STORE_RETRIES must parse
*/
package cliparse
