// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/sentinel"
)

var evalNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func grantsOf(moderator bool, caps ...models.Capability) Grants {
	g := Grants{Moderator: moderator, Caps: map[models.Capability]bool{}}
	for _, c := range caps {
		g.Caps[c] = true
	}
	return g
}

func basePoll() *models.Poll {
	return &models.Poll{
		ID:       "p1",
		TopicID:  1,
		BoardID:  10,
		MemberID: 100,
		MaxVotes: 1,
		Choices:  []models.Choice{{ID: 0, Label: "A"}, {ID: 1, Label: "B"}},
	}
}

func TestEvaluateVoting(t *testing.T) {
	member := models.Principal{MemberID: 7}
	guest := models.Principal{}
	topic := models.Topic{ID: 1, BoardID: 10, StarterID: 100}

	tests := []struct {
		name       string
		poll       func(p *models.Poll)
		principal  models.Principal
		grants     Grants
		hasVoted   bool
		wantVote   bool
		wantChange bool
	}{
		{"member with poll_vote", nil, member, grantsOf(false, models.CapPollVote), false, true, false},
		{"member without poll_vote", nil, member, grantsOf(false), false, false, false},
		{"moderator still needs poll_vote", nil, member, grantsOf(true), false, false, false},
		{"already voted, no change_vote", nil, member, grantsOf(false, models.CapPollVote), true, false, false},
		{"already voted, change_vote", func(p *models.Poll) { p.ChangeVote = true }, member, grantsOf(false, models.CapPollVote), true, false, true},
		{"not voted, change_vote", func(p *models.Poll) { p.ChangeVote = true }, member, grantsOf(false, models.CapPollVote), false, true, false},
		{"expired", func(p *models.Poll) { p.ExpireTime = evalNow.Unix() - 1; p.ChangeVote = true }, member, grantsOf(false, models.CapPollVote), true, false, false},
		{"expires exactly now", func(p *models.Poll) { p.ExpireTime = evalNow.Unix() }, member, grantsOf(false, models.CapPollVote), false, false, false},
		{"expires later", func(p *models.Poll) { p.ExpireTime = evalNow.Unix() + 60 }, member, grantsOf(false, models.CapPollVote), false, true, false},
		{"locked by user", func(p *models.Poll) { p.VotingLocked = models.LockedByUser }, member, grantsOf(false, models.CapPollVote), false, false, false},
		{"locked by moderator", func(p *models.Poll) { p.VotingLocked = models.LockedByModerator; p.ChangeVote = true }, member, grantsOf(false, models.CapPollVote), true, false, false},
		{"guest on member-only poll", nil, guest, grantsOf(false, models.CapPollVote), false, false, false},
		{"guest on guest poll", func(p *models.Poll) { p.GuestVote = true }, guest, grantsOf(false, models.CapPollVote), false, true, false},
		{"guest who voted never changes", func(p *models.Poll) { p.GuestVote = true; p.ChangeVote = true }, guest, grantsOf(false, models.CapPollVote), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePoll()
			if tt.poll != nil {
				tt.poll(p)
			}
			caps := Evaluate(EvalInput{Poll: p, Topic: topic, Principal: tt.principal, Grants: tt.grants, HasVoted: tt.hasVoted, Now: evalNow})

			if caps.AllowVote != tt.wantVote {
				t.Errorf("AllowVote = %v, want %v", caps.AllowVote, tt.wantVote)
			}
			if caps.AllowChangeVote != tt.wantChange {
				t.Errorf("AllowChangeVote = %v, want %v", caps.AllowChangeVote, tt.wantChange)
			}
			if caps.HasVoted != tt.hasVoted {
				t.Errorf("HasVoted = %v, want %v", caps.HasVoted, tt.hasVoted)
			}
		})
	}
}

func TestEvaluateOwnAndAny(t *testing.T) {
	topic := models.Topic{ID: 1, BoardID: 10, StarterID: 100}
	owner := models.Principal{MemberID: 100}
	pollAuthor := models.Principal{MemberID: 55} // posted the poll on someone else's topic
	other := models.Principal{MemberID: 7}

	tests := []struct {
		name       string
		principal  models.Principal
		grants     Grants
		wantLock   bool
		wantEdit   bool
		wantRemove bool
		wantReset  bool
	}{
		{"owner with own grants", owner, grantsOf(false, models.CapPollLockOwn, models.CapPollEditOwn, models.CapPollRemoveOwn), true, true, true, false},
		{"owner without grants", owner, grantsOf(false), false, false, false, false},
		{"poll author with own grants", pollAuthor, grantsOf(false, models.CapPollLockOwn, models.CapPollEditOwn), true, true, false, false},
		{"other with own grants", other, grantsOf(false, models.CapPollLockOwn, models.CapPollEditOwn, models.CapPollRemoveOwn), false, false, false, false},
		{"other with any grants", other, grantsOf(false, models.CapPollLockAny, models.CapPollEditAny, models.CapPollRemoveAny), true, true, true, true},
		{"moderator", other, grantsOf(true), true, true, true, true},
		{"guest never owns", models.Principal{}, grantsOf(false, models.CapPollLockOwn, models.CapPollEditOwn), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePoll()
			p.MemberID = 55
			caps := Evaluate(EvalInput{Poll: p, Topic: topic, Principal: tt.principal, Grants: tt.grants, Now: evalNow})

			if caps.AllowLockPoll != tt.wantLock {
				t.Errorf("AllowLockPoll = %v, want %v", caps.AllowLockPoll, tt.wantLock)
			}
			if caps.AllowEdit != tt.wantEdit {
				t.Errorf("AllowEdit = %v, want %v", caps.AllowEdit, tt.wantEdit)
			}
			if caps.AllowRemove != tt.wantRemove {
				t.Errorf("AllowRemove = %v, want %v", caps.AllowRemove, tt.wantRemove)
			}
			if caps.AllowResetVotes != tt.wantReset {
				t.Errorf("AllowResetVotes = %v, want %v", caps.AllowResetVotes, tt.wantReset)
			}
			if caps.AllowAdd {
				t.Error("AllowAdd must be false when a poll exists")
			}
		})
	}
}

func TestEvaluateAdd(t *testing.T) {
	topic := models.Topic{ID: 1, BoardID: 10, StarterID: 100}

	tests := []struct {
		name      string
		principal models.Principal
		grants    Grants
		want      bool
	}{
		{"starter with add_own", models.Principal{MemberID: 100}, grantsOf(false, models.CapPollAddOwn), true},
		{"other with add_own", models.Principal{MemberID: 7}, grantsOf(false, models.CapPollAddOwn), false},
		{"other with add_any", models.Principal{MemberID: 7}, grantsOf(false, models.CapPollAddAny), true},
		{"moderator", models.Principal{MemberID: 7}, grantsOf(true), true},
		{"guest with add_own", models.Principal{}, grantsOf(false, models.CapPollAddOwn), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := Evaluate(EvalInput{Topic: topic, Principal: tt.principal, Grants: tt.grants, Now: evalNow})
			if caps.AllowAdd != tt.want {
				t.Errorf("AllowAdd = %v, want %v", caps.AllowAdd, tt.want)
			}
			if caps.AllowVote || caps.AllowEdit || caps.AllowLockPoll {
				t.Error("only AllowAdd may be set without a poll")
			}
		})
	}
}

func TestEvaluateViewResults(t *testing.T) {
	topic := models.Topic{ID: 1, BoardID: 10, StarterID: 100}
	member := models.Principal{MemberID: 7}
	expired := evalNow.Unix() - 10
	future := evalNow.Unix() + 3600

	tests := []struct {
		name      string
		hide      models.HideResults
		expire    int64
		lock      models.LockState
		hasVoted  bool
		moderator bool
		want      bool
	}{
		{"never hidden", models.HideNever, 0, models.Unlocked, false, false, true},
		{"until voted, not voted", models.HideUntilVoted, 0, models.Unlocked, false, false, false},
		{"until voted, voted", models.HideUntilVoted, 0, models.Unlocked, true, false, true},
		{"until voted, expired", models.HideUntilVoted, expired, models.Unlocked, false, false, true},
		{"until expired, running", models.HideUntilExpired, future, models.Unlocked, true, false, false},
		{"until expired, expired", models.HideUntilExpired, expired, models.Unlocked, false, false, true},
		{"until expired, locked", models.HideUntilExpired, future, models.LockedByUser, false, false, true},
		{"always, member", models.HideAlways, expired, models.LockedByModerator, true, false, false},
		{"always, moderator", models.HideAlways, 0, models.Unlocked, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePoll()
			p.HideResults = tt.hide
			p.ExpireTime = tt.expire
			p.VotingLocked = tt.lock
			caps := Evaluate(EvalInput{Poll: p, Topic: topic, Principal: member, Grants: grantsOf(tt.moderator), HasVoted: tt.hasVoted, Now: evalNow})
			if caps.AllowViewResults != tt.want {
				t.Errorf("AllowViewResults = %v, want %v", caps.AllowViewResults, tt.want)
			}
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	p := basePoll()
	before := *p
	in := EvalInput{Poll: p, Topic: models.Topic{StarterID: 100}, Principal: models.Principal{MemberID: 7}, Grants: grantsOf(false, models.CapPollVote), Now: evalNow}

	first := Evaluate(in)
	second := Evaluate(in)
	if first != second {
		t.Errorf("Evaluate not deterministic: %+v vs %+v", first, second)
	}
	if p.ID != before.ID || p.VotingLocked != before.VotingLocked || len(p.Choices) != len(before.Choices) {
		t.Error("Evaluate mutated the poll")
	}
}

type fakeOracle struct {
	mu         sync.Mutex
	caps       map[int64]map[models.Capability]bool
	moderators map[int64]bool
	err        error
	modCalls   int
}

func (o *fakeOracle) HasCapability(ctx context.Context, memberID int64, c models.Capability, boardID int64) (bool, error) {
	if o.err != nil {
		return false, o.err
	}
	return o.caps[memberID][c], nil
}

func (o *fakeOracle) IsModerator(ctx context.Context, boardID, memberID int64) (bool, error) {
	o.mu.Lock()
	o.modCalls++
	o.mu.Unlock()
	if o.err != nil {
		return false, o.err
	}
	return o.moderators[memberID], nil
}

func TestResolveGrants(t *testing.T) {
	oracle := &fakeOracle{
		caps: map[int64]map[models.Capability]bool{
			7: {models.CapPollVote: true, models.CapPollEditOwn: true},
			0: {models.CapPollView: true},
		},
		moderators: map[int64]bool{7: true, 0: true},
	}

	g, err := ResolveGrants(context.Background(), oracle, models.Principal{MemberID: 7}, 10)
	if err != nil {
		t.Fatalf("ResolveGrants() error = %v", err)
	}
	if !g.Moderator || !g.Has(models.CapPollVote) || !g.Has(models.CapPollEditOwn) || g.Has(models.CapPollEditAny) {
		t.Errorf("unexpected grants %+v", g)
	}

	oracle.modCalls = 0
	g, err = ResolveGrants(context.Background(), oracle, models.Principal{}, 10)
	if err != nil {
		t.Fatalf("ResolveGrants() error = %v", err)
	}
	if g.Moderator {
		t.Error("guest must never be a moderator")
	}
	if oracle.modCalls != 0 {
		t.Errorf("IsModerator called %d times for a guest", oracle.modCalls)
	}
	if !g.Has(models.CapPollView) {
		t.Error("guest grants should come from member 0")
	}
}

func TestResolveGrantsErrors(t *testing.T) {
	oracle := &fakeOracle{err: sentinel.ErrUnavailable}
	_, err := ResolveGrants(context.Background(), oracle, models.Principal{MemberID: 7}, 10)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}

	boom := errors.New("boom")
	oracle.err = boom
	_, err = ResolveGrants(context.Background(), oracle, models.Principal{MemberID: 7}, 10)
	if !errors.Is(err, boom) || Classify(err) != ClassInternal {
		t.Errorf("error = %v, want internal boom", err)
	}
}
