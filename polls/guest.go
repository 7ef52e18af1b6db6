// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielhkuo/topic-polls/auth"
	"github.com/danielhkuo/topic-polls/models"
)

// GuestToken is the client-held record of a guest vote. Clearing it lets the
// guest vote again; guest vote tracking is advisory.
type GuestToken struct {
	PollID  string `json:"p"`
	CastAt  int64  `json:"t"` // unix millis
	Choices []int  `json:"c"`
}

// GuestVoteTracker counts guest voters and signs their tokens.
type GuestVoteTracker struct {
	secret string
}

func NewGuestVoteTracker(secret string) *GuestVoteTracker {
	return &GuestVoteTracker{secret: secret}
}

// GuestCookieName is the cookie holding the guest token for one topic.
func GuestCookieName(topicID int64) string {
	return fmt.Sprintf("poll_guest_%d", topicID)
}

// Record increments the poll's guest voter count inside tx and returns the
// signed token for the client.
func (g *GuestVoteTracker) Record(ctx context.Context, tx PollTx, poll models.Poll, choices []int, now time.Time) (string, error) {
	if err := tx.IncrementGuestVoters(ctx, poll.ID, 1); err != nil {
		return "", storeErr(err, ErrPollNotFound)
	}
	return g.Issue(GuestToken{PollID: poll.ID, CastAt: now.UnixMilli(), Choices: choices})
}

func (g *GuestVoteTracker) Issue(tok GuestToken) (string, error) {
	payload, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("encode guest token: %w", err)
	}
	return auth.SignToken(payload, g.secret), nil
}

func (g *GuestVoteTracker) Parse(token string) (GuestToken, error) {
	payload, err := auth.VerifyToken(token, g.secret)
	if err != nil {
		return GuestToken{}, err
	}
	var tok GuestToken
	if err := json.Unmarshal(payload, &tok); err != nil {
		return GuestToken{}, fmt.Errorf("decode guest token: %w", err)
	}
	return tok, nil
}

// Voted returns the choices recorded by token for poll. A token from before
// the poll's last reset, for another poll, or with a bad signature counts as
// no vote.
func (g *GuestVoteTracker) Voted(token string, poll models.Poll) ([]int, bool) {
	if token == "" {
		return nil, false
	}
	tok, err := g.Parse(token)
	if err != nil || tok.PollID != poll.ID || tok.CastAt <= poll.ResetAt {
		return nil, false
	}
	return tok.Choices, true
}

// HasVoted is Voted without the choices.
func (g *GuestVoteTracker) HasVoted(token string, poll models.Poll) bool {
	_, ok := g.Voted(token, poll)
	return ok
}
