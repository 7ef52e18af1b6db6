// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forum

import (
	"context"
	"database/sql"

	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/store"
)

// WildcardBoard is the board id of a grant that applies on every board.
const WildcardBoard int64 = 0

// SQLOracle answers capability questions from the capability_grant and
// board_moderator tables.
type SQLOracle struct {
	db *sql.DB
}

func NewSQLOracle(db *sql.DB) *SQLOracle {
	return &SQLOracle{db: db}
}

func (o *SQLOracle) HasCapability(ctx context.Context, memberID int64, capability models.Capability, boardID int64) (bool, error) {
	var n int
	err := o.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM capability_grant
		WHERE member_id = $1 AND capability = $2 AND (board_id = $3 OR board_id = $4)
	`, memberID, string(capability), boardID, WildcardBoard).Scan(&n)
	if err != nil {
		return false, store.Classify("check capability", err)
	}
	return n > 0, nil
}

func (o *SQLOracle) IsModerator(ctx context.Context, boardID, memberID int64) (bool, error) {
	var n int
	err := o.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM board_moderator
		WHERE member_id = $1 AND (board_id = $2 OR board_id = $3)
	`, memberID, boardID, WildcardBoard).Scan(&n)
	if err != nil {
		return false, store.Classify("check moderator", err)
	}
	return n > 0, nil
}

// Grant gives memberID the capabilities on boardID. Member 0 grants apply
// to guests.
func (o *SQLOracle) Grant(ctx context.Context, memberID, boardID int64, caps ...models.Capability) error {
	for _, c := range caps {
		_, err := o.db.ExecContext(ctx, `
			INSERT INTO capability_grant (member_id, board_id, capability)
			VALUES ($1, $2, $3)
			ON CONFLICT (member_id, board_id, capability) DO NOTHING
		`, memberID, boardID, string(c))
		if err != nil {
			return store.Classify("grant capability", err)
		}
	}
	return nil
}

// AddModerator makes memberID a moderator of boardID.
func (o *SQLOracle) AddModerator(ctx context.Context, boardID, memberID int64) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO board_moderator (board_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (board_id, member_id) DO NOTHING
	`, boardID, memberID)
	if err != nil {
		return store.Classify("add moderator", err)
	}
	return nil
}
