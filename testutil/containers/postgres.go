// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/danielhkuo/topic-polls/db"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the poll
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts PostgreSQL and connects with driverType
// (db.TypePostgres or db.TypePgx). The container is removed when t ends.
func NewPostgresContainer(t *testing.T, driverType string) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("polls"),
		tcpostgres.WithUsername("polls"),
		tcpostgres.WithPassword("polls"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	conn, err := db.Open(driverType, dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: conn}
}

// TruncateTables empties tables. Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", ")))
	return err
}

// PollTables lists every schema table, children first.
var PollTables = []string{
	"moderation_log", "board_moderator", "capability_grant",
	"poll_vote", "poll_choice", "poll", "topic",
}
