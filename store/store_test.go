// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/sentinel"
	"github.com/danielhkuo/topic-polls/store"
	"github.com/danielhkuo/topic-polls/testutil"
)

// StoreSuite runs against any database the open func hands it. Each test
// gets an empty schema.
type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T) *sql.DB
	db    *sql.DB
	store *store.SQLStore
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{open: testutil.SetupTestDB})
}

func (s *StoreSuite) SetupTest() {
	s.db = s.open(s.T())
	s.store = store.New(s.db)
	testutil.CreateTestTopic(s.T(), s.db, 1, 10, 100)
	testutil.CreateTestTopic(s.T(), s.db, 2, 10, 200)
}

// tx runs fn in a transaction that must commit.
func (s *StoreSuite) tx(fn func(ctx context.Context, tx polls.PollTx)) {
	ctx := context.Background()
	err := s.store.InTx(ctx, func(tx polls.PollTx) error {
		fn(ctx, tx)
		return nil
	})
	s.Require().NoError(err)
}

// txErr runs fn in its own transaction and returns fn's error.
func (s *StoreSuite) txErr(fn func(ctx context.Context, tx polls.PollTx) error) error {
	ctx := context.Background()
	return s.store.InTx(ctx, func(tx polls.PollTx) error {
		return fn(ctx, tx)
	})
}

func newPoll(topicID int64) models.Poll {
	return models.Poll{
		ID:          uuid.NewString(),
		TopicID:     topicID,
		MemberID:    100,
		PosterName:  "starter",
		Question:    "Which one?",
		MaxVotes:    2,
		HideResults: models.HideUntilVoted,
		ChangeVote:  true,
		ExpireTime:  1700000000,
		CreatedAt:   1690000000,
		Choices:     []models.Choice{{ID: 0, Label: "A"}, {ID: 1, Label: "B"}, {ID: 2, Label: "C"}},
	}
}

func (s *StoreSuite) savePoll(topicID int64) models.Poll {
	p := newPoll(topicID)
	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.Save(ctx, p))
	})
	return p
}

func (s *StoreSuite) load(topicID int64) models.Poll {
	var p models.Poll
	s.tx(func(ctx context.Context, tx polls.PollTx) {
		var err error
		p, err = tx.LoadByTopic(ctx, topicID)
		s.Require().NoError(err)
	})
	return p
}

func (s *StoreSuite) TestTopic() {
	ctx := context.Background()

	topic, err := s.store.Topic(ctx, 1)
	s.Require().NoError(err)
	s.Equal(models.Topic{ID: 1, BoardID: 10, StarterID: 100}, topic)

	_, err = s.store.Topic(ctx, 404)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestSaveAndLoad() {
	want := s.savePoll(1)

	got := s.load(1)
	s.Equal(want.ID, got.ID)
	s.Equal(int64(10), got.BoardID)
	s.Equal(want.Question, got.Question)
	s.Equal(want.MaxVotes, got.MaxVotes)
	s.Equal(want.HideResults, got.HideResults)
	s.True(got.ChangeVote)
	s.False(got.GuestVote)
	s.Equal(want.ExpireTime, got.ExpireTime)
	s.Equal(models.Unlocked, got.VotingLocked)
	s.Equal(want.Choices, got.Choices)

	topic, err := s.store.Topic(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(want.ID, topic.PollID)
}

func (s *StoreSuite) TestLoadMissing() {
	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		_, err := tx.LoadByTopic(ctx, 2)
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		_, err := tx.LockByTopic(ctx, 2)
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestSaveSecondPollOnTopicConflicts() {
	s.savePoll(1)

	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		return tx.Save(ctx, newPoll(1))
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestSaveKeepsCounters() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.AtomicIncrementVotes(ctx, p.ID, 1, 1))
		s.Require().NoError(tx.IncrementGuestVoters(ctx, p.ID, 1))
		ok, err := tx.CompareAndSetLock(ctx, p.ID, models.Unlocked, models.LockedByUser)
		s.Require().NoError(err)
		s.True(ok)
	})

	edited := p
	edited.Question = "Which two?"
	edited.GuestVote = true
	edited.Choices = []models.Choice{{ID: 0, Label: "A"}, {ID: 1, Label: "Bee"}, {ID: 2, Label: "C"}, {ID: 3, Label: "D"}}
	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.Save(ctx, edited))
	})

	got := s.load(1)
	s.Equal("Which two?", got.Question)
	s.True(got.GuestVote)
	s.Equal(models.LockedByUser, got.VotingLocked)
	s.Equal(1, got.NumGuestVoters)
	s.Equal([]models.Choice{
		{ID: 0, Label: "A"},
		{ID: 1, Label: "Bee", Votes: 1},
		{ID: 2, Label: "C"},
		{ID: 3, Label: "D"},
	}, got.Choices)
}

func (s *StoreSuite) TestAtomicIncrementVotes() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		for i := 0; i < 3; i++ {
			s.Require().NoError(tx.AtomicIncrementVotes(ctx, p.ID, 0, 1))
		}
		s.Require().NoError(tx.AtomicIncrementVotes(ctx, p.ID, 0, -1))
	})
	s.Equal(2, s.load(1).Choices[0].Votes)

	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		return tx.AtomicIncrementVotes(ctx, p.ID, 1, -1)
	})
	s.ErrorIs(err, sentinel.ErrConflict, "tallies never go negative")

	err = s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		return tx.AtomicIncrementVotes(ctx, p.ID, 9, 1)
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestVoteRecords() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		for _, rec := range []models.VoteRecord{
			{PollID: p.ID, MemberID: 7, ChoiceID: 2},
			{PollID: p.ID, MemberID: 7, ChoiceID: 0},
			{PollID: p.ID, MemberID: 8, ChoiceID: 1},
		} {
			s.Require().NoError(tx.InsertVoteRecord(ctx, rec))
		}

		choices, err := tx.MemberChoices(ctx, p.ID, 7)
		s.Require().NoError(err)
		s.Equal([]int{0, 2}, choices)

		none, err := tx.MemberChoices(ctx, p.ID, 9)
		s.Require().NoError(err)
		s.Empty(none)

		n, err := tx.CountMemberVoters(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		return tx.InsertVoteRecord(ctx, models.VoteRecord{PollID: p.ID, MemberID: 7, ChoiceID: 0})
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.DeleteVoteRecords(ctx, p.ID, 7))
		recs, err := tx.VoteRecords(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal([]models.VoteRecord{{PollID: p.ID, MemberID: 8, ChoiceID: 1}}, recs)
	})
}

func (s *StoreSuite) TestGuestVoters() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.IncrementGuestVoters(ctx, p.ID, 1))
		s.Require().NoError(tx.IncrementGuestVoters(ctx, p.ID, 1))
	})
	s.Equal(2, s.load(1).NumGuestVoters)

	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		return tx.IncrementGuestVoters(ctx, p.ID, -3)
	})
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Equal(2, s.load(1).NumGuestVoters)
}

func (s *StoreSuite) TestCompareAndSetLock() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		ok, err := tx.CompareAndSetLock(ctx, p.ID, models.Unlocked, models.LockedByModerator)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = tx.CompareAndSetLock(ctx, p.ID, models.Unlocked, models.LockedByUser)
		s.Require().NoError(err)
		s.False(ok, "stale from state must not match")
	})
	s.Equal(models.LockedByModerator, s.load(1).VotingLocked)
}

func (s *StoreSuite) TestResetVotes() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.AtomicIncrementVotes(ctx, p.ID, 0, 1))
		s.Require().NoError(tx.InsertVoteRecord(ctx, models.VoteRecord{PollID: p.ID, MemberID: 7, ChoiceID: 0}))
		s.Require().NoError(tx.IncrementGuestVoters(ctx, p.ID, 1))
		s.Require().NoError(tx.AtomicIncrementVotes(ctx, p.ID, 2, 1))
	})

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.ResetVotes(ctx, p.ID, 1695000000))
	})

	got := s.load(1)
	s.Zero(got.TotalVotes())
	s.Zero(got.NumGuestVoters)
	s.Equal(int64(1695000000), got.ResetAt)
	s.Equal(p.Question, got.Question)
	s.Len(got.Choices, 3)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		recs, err := tx.VoteRecords(ctx, p.ID)
		s.Require().NoError(err)
		s.Empty(recs)
	})
}

func (s *StoreSuite) TestDelete() {
	p := s.savePoll(1)
	other := s.savePoll(2)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.InsertVoteRecord(ctx, models.VoteRecord{PollID: p.ID, MemberID: 7, ChoiceID: 0}))
		s.Require().NoError(tx.Delete(ctx, p.ID))
	})

	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		_, err := tx.LoadByTopic(ctx, 1)
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	topic, err := s.store.Topic(context.Background(), 1)
	s.Require().NoError(err)
	s.Empty(topic.PollID)

	var leftover int
	s.Require().NoError(s.db.QueryRow(`SELECT COUNT(*) FROM poll_choice WHERE poll_id = $1`, p.ID).Scan(&leftover))
	s.Zero(leftover)

	s.Equal(other.ID, s.load(2).ID, "other topics keep their poll")

	err = s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		return tx.Delete(ctx, p.ID)
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestInTxRollsBack() {
	p := s.savePoll(1)
	boom := errors.New("boom")

	err := s.txErr(func(ctx context.Context, tx polls.PollTx) error {
		if err := tx.AtomicIncrementVotes(ctx, p.ID, 0, 1); err != nil {
			return err
		}
		if err := tx.InsertVoteRecord(ctx, models.VoteRecord{PollID: p.ID, MemberID: 7, ChoiceID: 0}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got := s.load(1)
	s.Zero(got.TotalVotes())
	s.tx(func(ctx context.Context, tx polls.PollTx) {
		recs, err := tx.VoteRecords(ctx, p.ID)
		s.Require().NoError(err)
		s.Empty(recs)
	})
}

func (s *StoreSuite) TestLockByTopicLoadsCommittedState() {
	p := s.savePoll(1)

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		s.Require().NoError(tx.AtomicIncrementVotes(ctx, p.ID, 2, 1))
	})

	s.tx(func(ctx context.Context, tx polls.PollTx) {
		got, err := tx.LockByTopic(ctx, 1)
		s.Require().NoError(err)
		s.Equal(1, got.Choices[2].Votes)
	})
}
