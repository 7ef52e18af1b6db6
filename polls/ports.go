// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"

	"github.com/danielhkuo/topic-polls/models"
)

// PollStore is the persistence boundary. Every mutation of one poll runs in a
// single InTx call.
type PollStore interface {
	Topic(ctx context.Context, topicID int64) (models.Topic, error)
	InTx(ctx context.Context, fn func(tx PollTx) error) error
}

// PollTx is the view of the store inside one transaction.
type PollTx interface {
	Topic(ctx context.Context, topicID int64) (models.Topic, error)
	LoadByTopic(ctx context.Context, topicID int64) (models.Poll, error)
	// LockByTopic serializes concurrent transactions on the poll, then loads it.
	LockByTopic(ctx context.Context, topicID int64) (models.Poll, error)
	Save(ctx context.Context, poll models.Poll) error
	Delete(ctx context.Context, pollID string) error
	AtomicIncrementVotes(ctx context.Context, pollID string, choiceID int, delta int) error
	MemberChoices(ctx context.Context, pollID string, memberID int64) ([]int, error)
	InsertVoteRecord(ctx context.Context, rec models.VoteRecord) error
	DeleteVoteRecords(ctx context.Context, pollID string, memberID int64) error
	IncrementGuestVoters(ctx context.Context, pollID string, delta int) error
	CompareAndSetLock(ctx context.Context, pollID string, from, to models.LockState) (bool, error)
	ResetVotes(ctx context.Context, pollID string, resetAt int64) error
	CountMemberVoters(ctx context.Context, pollID string) (int, error)
	VoteRecords(ctx context.Context, pollID string) ([]models.VoteRecord, error)
}

// PermissionOracle answers the forum's capability questions.
type PermissionOracle interface {
	HasCapability(ctx context.Context, memberID int64, capability models.Capability, boardID int64) (bool, error)
	IsModerator(ctx context.Context, boardID, memberID int64) (bool, error)
}

// Session guards mutating actions against double submission.
type Session interface {
	// Issue mints a single-use form token.
	Issue(ctx context.Context) (string, error)
	// VerifyNotDoubleSubmitted consumes formToken. A missing, unknown or
	// already consumed token fails with ErrDoubleSubmission.
	VerifyNotDoubleSubmitted(ctx context.Context, formToken string) error
}

// ModerationLog records moderation actions. Record must not block the caller
// on failure; implementations log and drop errors.
type ModerationLog interface {
	Record(ctx context.Context, entry LogEntry)
}

// LogEntry is one moderation log line.
type LogEntry struct {
	Action   models.Action
	TopicID  int64
	MemberID int64
	IP       string // raw; implementations store it hashed
	Details  map[string]any
}
