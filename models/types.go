// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "fmt"

// LockState is the voting_locked tri-state of a poll.
type LockState int

const (
	Unlocked          LockState = 0
	LockedByUser      LockState = 1
	LockedByModerator LockState = 2
)

func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case LockedByUser:
		return "locked_by_user"
	case LockedByModerator:
		return "locked_by_moderator"
	default:
		return fmt.Sprintf("lock_state(%d)", int(s))
	}
}

// Locked reports whether voting is disabled.
func (s LockState) Locked() bool {
	return s != Unlocked
}

// HideResults controls when tallies are visible to ordinary members.
type HideResults int

const (
	HideNever        HideResults = 0
	HideUntilVoted   HideResults = 1
	HideUntilExpired HideResults = 2 // until expired or locked
	HideAlways       HideResults = 3
)

func (h HideResults) Valid() bool {
	return h >= HideNever && h <= HideAlways
}

// LockIntent is what the caller asked the lock toggle to do
type LockIntent string

const (
	IntentToggle LockIntent = "toggle"
	IntentLock   LockIntent = "lock"
	IntentUnlock LockIntent = "unlock"
)

// Action enumerates the poll sub-actions the boundary layer dispatches.
type Action int

const (
	ActionView Action = iota
	ActionAdd
	ActionEdit
	ActionRemove
	ActionVote
	ActionWithdraw
	ActionLock
	ActionReset
)

var actionNames = [...]string{
	ActionView:     "view",
	ActionAdd:      "add_poll",
	ActionEdit:     "edit_poll",
	ActionRemove:   "remove_poll",
	ActionVote:     "vote",
	ActionWithdraw: "withdraw_vote",
	ActionLock:     "lock_poll",
	ActionReset:    "reset_poll",
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Capability names understood by the permission oracle.
type Capability string

const (
	CapPollView      Capability = "poll_view"
	CapPollVote      Capability = "poll_vote"
	CapPollAddOwn    Capability = "poll_add_own"
	CapPollAddAny    Capability = "poll_add_any"
	CapPollEditOwn   Capability = "poll_edit_own"
	CapPollEditAny   Capability = "poll_edit_any"
	CapPollLockOwn   Capability = "poll_lock_own"
	CapPollLockAny   Capability = "poll_lock_any"
	CapPollRemoveOwn Capability = "poll_remove_own"
	CapPollRemoveAny Capability = "poll_remove_any"
)

// PollCapabilities is every capability the evaluator asks the oracle about.
var PollCapabilities = []Capability{
	CapPollView, CapPollVote,
	CapPollAddOwn, CapPollAddAny,
	CapPollEditOwn, CapPollEditAny,
	CapPollLockOwn, CapPollLockAny,
	CapPollRemoveOwn, CapPollRemoveAny,
}

// Domain types

// Topic is the forum thread a poll hangs off.
type Topic struct {
	ID        int64  `json:"id"`
	BoardID   int64  `json:"board_id"`
	StarterID int64  `json:"starter_id"`
	PollID    string `json:"poll_id,omitempty"`
}

type Choice struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Votes int    `json:"votes"`
}

type Poll struct {
	ID             string      `json:"id"`
	TopicID        int64       `json:"topic_id"`
	BoardID        int64       `json:"board_id"`
	MemberID       int64       `json:"member_id"`
	PosterName     string      `json:"poster_name"`
	Question       string      `json:"question"`
	Choices        []Choice    `json:"choices"`
	MaxVotes       int         `json:"max_votes"`
	HideResults    HideResults `json:"hide_results"`
	ChangeVote     bool        `json:"change_vote"`
	GuestVote      bool        `json:"guest_vote"`
	ExpireTime     int64       `json:"expire_time"`
	VotingLocked   LockState   `json:"voting_locked"`
	NumGuestVoters int         `json:"num_guest_voters"`
	ResetAt        int64       `json:"reset_at"` // unix millis
	CreatedAt      int64       `json:"created_at"`
}

// FindChoice returns the choice with the given id.
func (p *Poll) FindChoice(id int) (Choice, bool) {
	for _, c := range p.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// NextChoiceID is one past the highest assigned choice id.
func (p *Poll) NextChoiceID() int {
	next := 0
	for _, c := range p.Choices {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	return next
}

// Expired reports whether the poll has passed its expire_time at unix time now.
func (p *Poll) Expired(now int64) bool {
	return p.ExpireTime != 0 && p.ExpireTime <= now
}

// TotalVotes sums the tallies across choices.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, c := range p.Choices {
		total += c.Votes
	}
	return total
}

type VoteRecord struct {
	PollID   string `json:"poll_id"`
	MemberID int64  `json:"member_id"`
	ChoiceID int    `json:"choice_id"`
}

// Principal is the acting member. MemberID is 0 for guests.
type Principal struct {
	MemberID int64
	Name     string
	IP       string
}

func (p Principal) IsGuest() bool {
	return p.MemberID == 0
}

// Capabilities is the poll-specific capability set derived for one principal.
type Capabilities struct {
	AllowVote        bool `json:"allow_vote"`
	AllowChangeVote  bool `json:"allow_change_vote"`
	AllowLockPoll    bool `json:"allow_lock_poll"`
	AllowEdit        bool `json:"allow_edit"`
	AllowAdd         bool `json:"allow_add"`
	AllowRemove      bool `json:"allow_remove"`
	AllowResetVotes  bool `json:"allow_reset_votes"`
	AllowViewResults bool `json:"allow_view_results"`
	IsExpired        bool `json:"is_expired"`
	HasVoted         bool `json:"has_voted"`
}

// Request types

type ChoiceEdit struct {
	ID    *int   `json:"id,omitempty"`
	Label string `json:"label"`
}

type CreatePollRequest struct {
	Question    string      `json:"question"`
	MaxVotes    int         `json:"max_votes"`
	HideResults HideResults `json:"hide_results"`
	ChangeVote  bool        `json:"change_vote"`
	GuestVote   bool        `json:"guest_vote"`
	ExpireDays  int         `json:"expire_days"`
	Choices     []string    `json:"choices"`
}

// UpdatePollRequest carries only the fields being changed.
type UpdatePollRequest struct {
	Question    *string      `json:"question,omitempty"`
	MaxVotes    *int         `json:"max_votes,omitempty"`
	HideResults *HideResults `json:"hide_results,omitempty"`
	ChangeVote  *bool        `json:"change_vote,omitempty"`
	GuestVote   *bool        `json:"guest_vote,omitempty"`
	ExpireDays  *int         `json:"expire_days,omitempty"`
	Choices     []ChoiceEdit `json:"choices,omitempty"`
}

type CastVotesRequest struct {
	Choices []int `json:"choices"`
}

type LockRequest struct {
	Intent LockIntent `json:"intent"`
}

// Response types

type ChoiceView struct {
	ID      int     `json:"id"`
	Label   string  `json:"label"`
	Votes   *int    `json:"votes,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Voted   bool    `json:"voted"`
}

type PollView struct {
	ID           string       `json:"id"`
	TopicID      int64        `json:"topic_id"`
	Question     string       `json:"question"`
	PosterName   string       `json:"poster_name"`
	MaxVotes     int          `json:"max_votes"`
	HideResults  HideResults  `json:"hide_results"`
	ChangeVote   bool         `json:"change_vote"`
	GuestVote    bool         `json:"guest_vote"`
	ExpireTime   int64        `json:"expire_time"`
	ExpiresIn    string       `json:"expires_in,omitempty"`
	VotingLocked LockState    `json:"voting_locked"`
	TotalVoters  *int         `json:"total_voters,omitempty"`
	Choices      []ChoiceView `json:"choices"`
	Capabilities Capabilities `json:"capabilities"`
	FormToken    string       `json:"form_token,omitempty"`
}

type CastVotesResponse struct {
	Poll       PollView `json:"poll"`
	Revoted    bool     `json:"revoted"`
	GuestToken string   `json:"-"` // set as a cookie, never in the body
}

type LockResponse struct {
	VotingLocked LockState `json:"voting_locked"`
}

type FormTokenResponse struct {
	FormToken string `json:"form_token"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
