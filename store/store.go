// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/sentinel"
)

// queryer is the subset of *sql.DB and *sql.Tx the store needs.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists polls, choices and vote records with database/sql.
// The same statements run on PostgreSQL and SQLite.
type SQLStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Topic looks up a topic outside any transaction.
func (s *SQLStore) Topic(ctx context.Context, topicID int64) (models.Topic, error) {
	return loadTopic(ctx, s.db, topicID)
}

// InTx runs fn inside a single database transaction. fn's error rolls back.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx polls.PollTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		// Not classified as unavailable: the commit may have landed.
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements polls.PollTx on top of one *sql.Tx.
type txStore struct {
	q queryer
}

func loadTopic(ctx context.Context, q queryer, topicID int64) (models.Topic, error) {
	var topic models.Topic
	var pollID sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, board_id, starter_member_id, poll_id
		FROM topic
		WHERE id = $1
	`, topicID).Scan(&topic.ID, &topic.BoardID, &topic.StarterID, &pollID)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Topic{}, fmt.Errorf("topic %d: %w", topicID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.Topic{}, Classify("load topic", err)
	}
	topic.PollID = pollID.String
	return topic, nil
}

func (t *txStore) Topic(ctx context.Context, topicID int64) (models.Topic, error) {
	return loadTopic(ctx, t.q, topicID)
}

func (t *txStore) LoadByTopic(ctx context.Context, topicID int64) (models.Poll, error) {
	var poll models.Poll
	err := t.q.QueryRowContext(ctx, `
		SELECT p.id, p.topic_id, t.board_id, p.member_id, p.poster_name, p.question,
		       p.max_votes, p.hide_results, p.change_vote, p.guest_vote, p.expire_time,
		       p.voting_locked, p.num_guest_voters, p.reset_at, p.created_at
		FROM poll p
		JOIN topic t ON t.id = p.topic_id
		WHERE p.topic_id = $1
	`, topicID).Scan(
		&poll.ID, &poll.TopicID, &poll.BoardID, &poll.MemberID, &poll.PosterName, &poll.Question,
		&poll.MaxVotes, &poll.HideResults, &poll.ChangeVote, &poll.GuestVote, &poll.ExpireTime,
		&poll.VotingLocked, &poll.NumGuestVoters, &poll.ResetAt, &poll.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Poll{}, fmt.Errorf("poll for topic %d: %w", topicID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.Poll{}, Classify("load poll", err)
	}

	choices, err := t.choices(ctx, poll.ID)
	if err != nil {
		return models.Poll{}, err
	}
	poll.Choices = choices
	return poll, nil
}

// LockByTopic bumps the poll's revision, which holds the row lock (PostgreSQL)
// or the database write lock (SQLite) until the transaction ends, then loads
// the poll as committed by whoever held the lock before.
func (t *txStore) LockByTopic(ctx context.Context, topicID int64) (models.Poll, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE poll SET revision = revision + 1 WHERE topic_id = $1
	`, topicID)
	if err != nil {
		return models.Poll{}, Classify("lock poll", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Poll{}, Classify("lock poll", err)
	}
	if n == 0 {
		return models.Poll{}, fmt.Errorf("poll for topic %d: %w", topicID, sentinel.ErrNotFound)
	}
	return t.LoadByTopic(ctx, topicID)
}

func (t *txStore) choices(ctx context.Context, pollID string) ([]models.Choice, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT choice_id, label, votes
		FROM poll_choice
		WHERE poll_id = $1
		ORDER BY choice_id
	`, pollID)
	if err != nil {
		return nil, Classify("query choices", err)
	}
	defer rows.Close()

	choices := []models.Choice{}
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.Label, &c.Votes); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("query choices", err)
	}
	return choices, nil
}

// Save inserts the poll or updates its metadata, inserts new choices and
// relabels existing ones. Counters (votes, num_guest_voters, voting_locked)
// are never written here; they move only through atomic deltas.
func (t *txStore) Save(ctx context.Context, poll models.Poll) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE poll SET
			question = $1,
			max_votes = $2,
			hide_results = $3,
			change_vote = $4,
			guest_vote = $5,
			expire_time = $6
		WHERE id = $7
	`, poll.Question, poll.MaxVotes, int(poll.HideResults), poll.ChangeVote, poll.GuestVote,
		poll.ExpireTime, poll.ID)
	if err != nil {
		return Classify("update poll", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Classify("update poll", err)
	}

	if n == 0 {
		_, err = t.q.ExecContext(ctx, `
			INSERT INTO poll (id, topic_id, member_id, poster_name, question, max_votes,
			                  hide_results, change_vote, guest_vote, expire_time, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, poll.ID, poll.TopicID, poll.MemberID, poll.PosterName, poll.Question, poll.MaxVotes,
			int(poll.HideResults), poll.ChangeVote, poll.GuestVote, poll.ExpireTime, poll.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("topic %d already has a poll: %w", poll.TopicID, sentinel.ErrConflict)
			}
			return Classify("insert poll", err)
		}
	}

	for _, c := range poll.Choices {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO poll_choice (poll_id, choice_id, label, votes)
			VALUES ($1, $2, $3, 0)
			ON CONFLICT (poll_id, choice_id) DO UPDATE SET label = excluded.label
		`, poll.ID, c.ID, c.Label)
		if err != nil {
			return Classify("save choice", err)
		}
	}

	_, err = t.q.ExecContext(ctx, `
		UPDATE topic SET poll_id = $1 WHERE id = $2
	`, poll.ID, poll.TopicID)
	if err != nil {
		return Classify("link topic", err)
	}
	return nil
}

// Delete removes the poll with its choices and vote records and clears the
// topic's poll reference.
func (t *txStore) Delete(ctx context.Context, pollID string) error {
	if _, err := t.q.ExecContext(ctx, `UPDATE topic SET poll_id = NULL WHERE poll_id = $1`, pollID); err != nil {
		return Classify("unlink topic", err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM poll_vote WHERE poll_id = $1`, pollID); err != nil {
		return Classify("delete votes", err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM poll_choice WHERE poll_id = $1`, pollID); err != nil {
		return Classify("delete choices", err)
	}
	res, err := t.q.ExecContext(ctx, `DELETE FROM poll WHERE id = $1`, pollID)
	if err != nil {
		return Classify("delete poll", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Classify("delete poll", err)
	}
	if n == 0 {
		return fmt.Errorf("poll %s: %w", pollID, sentinel.ErrNotFound)
	}
	return nil
}

// AtomicIncrementVotes adds delta to one choice's tally in place. A delta that
// would take the tally below zero matches no row and fails with ErrConflict.
func (t *txStore) AtomicIncrementVotes(ctx context.Context, pollID string, choiceID int, delta int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE poll_choice
		SET votes = votes + $1
		WHERE poll_id = $2 AND choice_id = $3 AND votes + $1 >= 0
	`, delta, pollID, choiceID)
	if err != nil {
		return Classify("increment votes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Classify("increment votes", err)
	}
	if n == 0 {
		return fmt.Errorf("choice %d of poll %s (delta %d): %w", choiceID, pollID, delta, sentinel.ErrConflict)
	}
	return nil
}

func (t *txStore) MemberChoices(ctx context.Context, pollID string, memberID int64) ([]int, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT choice_id FROM poll_vote
		WHERE poll_id = $1 AND member_id = $2
		ORDER BY choice_id
	`, pollID, memberID)
	if err != nil {
		return nil, Classify("query member votes", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member vote: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("query member votes", err)
	}
	sort.Ints(ids)
	return ids, nil
}

func (t *txStore) InsertVoteRecord(ctx context.Context, rec models.VoteRecord) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO poll_vote (poll_id, member_id, choice_id)
		VALUES ($1, $2, $3)
	`, rec.PollID, rec.MemberID, rec.ChoiceID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %d already voted for choice %d: %w", rec.MemberID, rec.ChoiceID, sentinel.ErrConflict)
		}
		return Classify("insert vote", err)
	}
	return nil
}

func (t *txStore) DeleteVoteRecords(ctx context.Context, pollID string, memberID int64) error {
	_, err := t.q.ExecContext(ctx, `
		DELETE FROM poll_vote WHERE poll_id = $1 AND member_id = $2
	`, pollID, memberID)
	if err != nil {
		return Classify("delete member votes", err)
	}
	return nil
}

func (t *txStore) IncrementGuestVoters(ctx context.Context, pollID string, delta int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE poll
		SET num_guest_voters = num_guest_voters + $1
		WHERE id = $2 AND num_guest_voters + $1 >= 0
	`, delta, pollID)
	if err != nil {
		return Classify("increment guest voters", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Classify("increment guest voters", err)
	}
	if n == 0 {
		return fmt.Errorf("guest voters of poll %s (delta %d): %w", pollID, delta, sentinel.ErrConflict)
	}
	return nil
}

// CompareAndSetLock moves voting_locked from -> to. It reports false when the
// persisted state was no longer from.
func (t *txStore) CompareAndSetLock(ctx context.Context, pollID string, from, to models.LockState) (bool, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE poll SET voting_locked = $1
		WHERE id = $2 AND voting_locked = $3
	`, int(to), pollID, int(from))
	if err != nil {
		return false, Classify("set lock state", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Classify("set lock state", err)
	}
	return n == 1, nil
}

// ResetVotes zeroes every tally, drops the member votes and the guest counter,
// and stamps reset_at. Metadata and lock state are untouched.
func (t *txStore) ResetVotes(ctx context.Context, pollID string, resetAt int64) error {
	if _, err := t.q.ExecContext(ctx, `UPDATE poll_choice SET votes = 0 WHERE poll_id = $1`, pollID); err != nil {
		return Classify("reset tallies", err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM poll_vote WHERE poll_id = $1`, pollID); err != nil {
		return Classify("reset member votes", err)
	}
	_, err := t.q.ExecContext(ctx, `
		UPDATE poll SET num_guest_voters = 0, reset_at = $1 WHERE id = $2
	`, resetAt, pollID)
	if err != nil {
		return Classify("reset poll", err)
	}
	return nil
}

func (t *txStore) CountMemberVoters(ctx context.Context, pollID string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT member_id) FROM poll_vote WHERE poll_id = $1
	`, pollID).Scan(&n)
	if err != nil {
		return 0, Classify("count voters", err)
	}
	return n, nil
}

// VoteRecords lists every member vote of a poll.
func (t *txStore) VoteRecords(ctx context.Context, pollID string) ([]models.VoteRecord, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT poll_id, member_id, choice_id FROM poll_vote
		WHERE poll_id = $1
		ORDER BY member_id, choice_id
	`, pollID)
	if err != nil {
		return nil, Classify("query votes", err)
	}
	defer rows.Close()

	var recs []models.VoteRecord
	for rows.Next() {
		var rec models.VoteRecord
		if err := rows.Scan(&rec.PollID, &rec.MemberID, &rec.ChoiceID); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("query votes", err)
	}
	return recs, nil
}
