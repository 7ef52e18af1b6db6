// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/topic-polls/models"
)

// Grants is what the oracle said about one principal on one board.
type Grants struct {
	Moderator bool
	Caps      map[models.Capability]bool
}

func (g Grants) Has(c models.Capability) bool {
	return g.Caps[c]
}

// LockAuthority reports whether the principal locks as a moderator.
func (g Grants) LockAuthority() bool {
	return g.Moderator || g.Has(models.CapPollLockAny)
}

// ResolveGrants asks the oracle about every poll capability at once.
// Guests are never moderators.
func ResolveGrants(ctx context.Context, oracle PermissionOracle, principal models.Principal, boardID int64) (Grants, error) {
	g, gctx := errgroup.WithContext(ctx)

	held := make([]bool, len(models.PollCapabilities))
	for i, c := range models.PollCapabilities {
		g.Go(func() error {
			ok, err := oracle.HasCapability(gctx, principal.MemberID, c, boardID)
			if err != nil {
				return fmt.Errorf("capability %s: %w", c, err)
			}
			held[i] = ok
			return nil
		})
	}

	var moderator bool
	if !principal.IsGuest() {
		g.Go(func() error {
			ok, err := oracle.IsModerator(gctx, boardID, principal.MemberID)
			if err != nil {
				return fmt.Errorf("moderator check: %w", err)
			}
			moderator = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Grants{}, fmt.Errorf("resolve grants: %w", storeErr(err, ErrPermissionDenied))
	}

	grants := Grants{Moderator: moderator, Caps: make(map[models.Capability]bool, len(held))}
	for i, c := range models.PollCapabilities {
		if held[i] {
			grants.Caps[c] = true
		}
	}
	return grants, nil
}

// EvalInput is everything Evaluate looks at. Poll is nil when the topic has
// no poll yet.
type EvalInput struct {
	Poll      *models.Poll
	Topic     models.Topic
	Principal models.Principal
	Grants    Grants
	HasVoted  bool
	Now       time.Time
}

// owner reports whether the principal started the poll or its topic.
func (in EvalInput) owner() bool {
	if in.Principal.IsGuest() {
		return false
	}
	id := in.Principal.MemberID
	if in.Poll != nil && in.Poll.MemberID == id {
		return true
	}
	return in.Topic.StarterID == id
}

// scope names the grant variant that would have allowed the action.
func (in EvalInput) scope() Scope {
	if in.owner() {
		return ScopeOwn
	}
	return ScopeAny
}

// Evaluate derives the poll capability set. It has no side effects.
func Evaluate(in EvalInput) models.Capabilities {
	var caps models.Capabilities
	g := in.Grants
	owner := in.owner()

	if in.Poll == nil {
		caps.AllowAdd = g.Moderator || g.Has(models.CapPollAddAny) ||
			(owner && g.Has(models.CapPollAddOwn))
		return caps
	}

	p := in.Poll
	caps.HasVoted = in.HasVoted
	caps.IsExpired = p.Expired(in.Now.Unix())

	open := g.Has(models.CapPollVote) && !caps.IsExpired && !p.VotingLocked.Locked() &&
		(!in.Principal.IsGuest() || p.GuestVote)
	caps.AllowVote = open && !in.HasVoted
	caps.AllowChangeVote = open && in.HasVoted && p.ChangeVote && !in.Principal.IsGuest()

	caps.AllowLockPoll = g.LockAuthority() || (owner && g.Has(models.CapPollLockOwn))
	caps.AllowEdit = g.Moderator || g.Has(models.CapPollEditAny) ||
		(owner && g.Has(models.CapPollEditOwn))
	caps.AllowRemove = g.Moderator || g.Has(models.CapPollRemoveAny) ||
		(owner && g.Has(models.CapPollRemoveOwn))
	caps.AllowResetVotes = g.Moderator || g.Has(models.CapPollEditAny)
	caps.AllowViewResults = resultsVisible(p, g.Moderator, in.HasVoted, caps.IsExpired)
	return caps
}

func resultsVisible(p *models.Poll, moderator, hasVoted, expired bool) bool {
	if moderator {
		return true
	}
	switch p.HideResults {
	case models.HideNever:
		return true
	case models.HideUntilVoted:
		return hasVoted || expired
	case models.HideUntilExpired:
		return expired || p.VotingLocked.Locked()
	default:
		return false
	}
}

// voteDeniedReason explains a false AllowVote for a poll.
func voteDeniedReason(in EvalInput) string {
	p := in.Poll
	switch {
	case in.Principal.IsGuest() && !p.GuestVote:
		return "guests may not vote in this poll"
	case !in.Grants.Has(models.CapPollVote):
		return "missing poll_vote"
	case p.Expired(in.Now.Unix()):
		return "poll has expired"
	case p.VotingLocked.Locked():
		return "voting is locked"
	case in.HasVoted:
		return "already voted"
	default:
		return ""
	}
}
