// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danielhkuo/topic-polls/models"
)

// VoteTallier casts and withdraws votes inside the caller's transaction.
// Tallies only move through atomic deltas.
type VoteTallier struct {
	guests *GuestVoteTracker
}

// Ballot is one principal's standing on a poll, read inside the transaction.
type Ballot struct {
	Voter models.Principal
	Prior []int // member choices already recorded
	Caps  models.Capabilities
	Eval  EvalInput
}

// CastOutcome is what a successful cast changed.
type CastOutcome struct {
	Choices    []int
	Revoted    bool
	GuestToken string
}

// selection validates choiceIDs against poll and returns them sorted. Every id
// counts toward MaxVotes and may appear only once.
func selection(poll models.Poll, choiceIDs []int) ([]int, error) {
	if len(choiceIDs) == 0 {
		return nil, ErrNoChoiceSelected
	}
	if len(choiceIDs) > poll.MaxVotes {
		return nil, fmt.Errorf("%w: selected %d, poll allows %d", ErrTooManyChoicesSelected, len(choiceIDs), poll.MaxVotes)
	}
	seen := make(map[int]bool, len(choiceIDs))
	ids := make([]int, 0, len(choiceIDs))
	for _, id := range choiceIDs {
		if seen[id] {
			return nil, invalid("choices", fmt.Sprintf("choice %d selected more than once", id))
		}
		if _, ok := poll.FindChoice(id); !ok {
			return nil, invalid("choices", fmt.Sprintf("choice %d does not exist", id))
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Cast records choiceIDs for the ballot's voter. A member who already voted
// and may change their vote has the old vote withdrawn first, in the same
// transaction.
func (t VoteTallier) Cast(ctx context.Context, tx PollTx, poll models.Poll, b Ballot, choiceIDs []int, now time.Time) (CastOutcome, error) {
	revote := false
	if !b.Caps.AllowVote {
		if !b.Caps.AllowChangeVote || len(b.Prior) == 0 {
			return CastOutcome{}, denied(models.ActionVote, "", voteDeniedReason(b.Eval))
		}
		revote = true
	}

	ids, err := selection(poll, choiceIDs)
	if err != nil {
		return CastOutcome{}, err
	}

	if revote {
		if err := withdraw(ctx, tx, poll.ID, b.Voter.MemberID, b.Prior); err != nil {
			return CastOutcome{}, err
		}
	}

	for _, id := range ids {
		if err := tx.AtomicIncrementVotes(ctx, poll.ID, id, 1); err != nil {
			return CastOutcome{}, storeErr(err, ErrPollNotFound)
		}
		if b.Voter.IsGuest() {
			continue
		}
		rec := models.VoteRecord{PollID: poll.ID, MemberID: b.Voter.MemberID, ChoiceID: id}
		if err := tx.InsertVoteRecord(ctx, rec); err != nil {
			return CastOutcome{}, storeErr(err, ErrPollNotFound)
		}
	}

	out := CastOutcome{Choices: ids, Revoted: revote}
	if b.Voter.IsGuest() {
		out.GuestToken, err = t.guests.Record(ctx, tx, poll, ids, now)
		if err != nil {
			return CastOutcome{}, err
		}
	}
	return out, nil
}

// Withdraw removes the voter's recorded choices and returns them. A member
// with nothing recorded is a no-op.
func (VoteTallier) Withdraw(ctx context.Context, tx PollTx, poll models.Poll, b Ballot) ([]int, error) {
	if b.Voter.IsGuest() {
		return nil, denied(models.ActionWithdraw, "", "guest votes cannot be withdrawn")
	}
	if len(b.Prior) == 0 {
		return nil, nil
	}
	if !b.Caps.AllowChangeVote {
		reason := "poll does not allow changing votes"
		if poll.ChangeVote {
			reason = voteDeniedReason(b.Eval)
		}
		return nil, denied(models.ActionWithdraw, "", reason)
	}
	if err := withdraw(ctx, tx, poll.ID, b.Voter.MemberID, b.Prior); err != nil {
		return nil, err
	}
	return b.Prior, nil
}

func withdraw(ctx context.Context, tx PollTx, pollID string, memberID int64, prior []int) error {
	for _, id := range prior {
		if err := tx.AtomicIncrementVotes(ctx, pollID, id, -1); err != nil {
			return storeErr(err, ErrPollNotFound)
		}
	}
	if err := tx.DeleteVoteRecords(ctx, pollID, memberID); err != nil {
		return storeErr(err, ErrPollNotFound)
	}
	return nil
}
