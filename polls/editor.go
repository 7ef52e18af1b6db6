// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/sentinel"
)

const (
	MaxLabelLength = 255
	MaxExpireDays  = 9999
	MinChoices     = 2
)

// PollEditor validates and applies poll creation, edits and resets.
// Permission checks happen before it is called.
type PollEditor struct{}

// BuildNew validates req and returns the poll to insert for topic.
func (PollEditor) BuildNew(req models.CreatePollRequest, topic models.Topic, author models.Principal, now time.Time) (models.Poll, error) {
	question, err := cleanLabel("question", req.Question)
	if err != nil {
		return models.Poll{}, err
	}
	if req.MaxVotes < 1 {
		return models.Poll{}, invalid("max_votes", "must be at least 1")
	}
	if !req.HideResults.Valid() {
		return models.Poll{}, invalid("hide_results", fmt.Sprintf("unknown mode %d", int(req.HideResults)))
	}
	if err := checkExpireDays(req.ExpireDays); err != nil {
		return models.Poll{}, err
	}

	var choices []models.Choice
	for _, label := range req.Choices {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if utf8.RuneCountInString(label) > MaxLabelLength {
			return models.Poll{}, invalid("choices", fmt.Sprintf("choice %q is longer than %d characters", truncate(label), MaxLabelLength))
		}
		choices = append(choices, models.Choice{ID: len(choices), Label: label})
	}
	if len(choices) < MinChoices {
		return models.Poll{}, invalid("choices", fmt.Sprintf("at least %d non-empty choices required", MinChoices))
	}

	poll := models.Poll{
		ID:          uuid.NewString(),
		TopicID:     topic.ID,
		BoardID:     topic.BoardID,
		MemberID:    author.MemberID,
		PosterName:  author.Name,
		Question:    question,
		Choices:     choices,
		MaxVotes:    min(req.MaxVotes, len(choices)),
		HideResults: req.HideResults,
		ChangeVote:  req.ChangeVote,
		GuestVote:   req.GuestVote,
		ExpireTime:  expireTime(req.ExpireDays, now),
		CreatedAt:   now.Unix(),
	}
	normalizeHide(&poll)
	return poll, nil
}

// ApplyUpdate returns poll with req merged in. Choice edits with an id relabel
// that choice; edits without one append a new choice. Blank new labels are
// ignored, blanking an existing label is an error.
func (PollEditor) ApplyUpdate(poll models.Poll, req models.UpdatePollRequest, now time.Time) (models.Poll, error) {
	out := poll
	out.Choices = append([]models.Choice(nil), poll.Choices...)

	if req.Question != nil {
		q, err := cleanLabel("question", *req.Question)
		if err != nil {
			return models.Poll{}, err
		}
		out.Question = q
	}
	if req.HideResults != nil {
		if !req.HideResults.Valid() {
			return models.Poll{}, invalid("hide_results", fmt.Sprintf("unknown mode %d", int(*req.HideResults)))
		}
		out.HideResults = *req.HideResults
	}
	if req.ChangeVote != nil {
		out.ChangeVote = *req.ChangeVote
	}
	if req.GuestVote != nil {
		out.GuestVote = *req.GuestVote
	}
	if req.ExpireDays != nil {
		if err := checkExpireDays(*req.ExpireDays); err != nil {
			return models.Poll{}, err
		}
		out.ExpireTime = expireTime(*req.ExpireDays, now)
	}

	for _, edit := range req.Choices {
		label := strings.TrimSpace(edit.Label)
		if edit.ID == nil {
			if label == "" {
				continue
			}
			if utf8.RuneCountInString(label) > MaxLabelLength {
				return models.Poll{}, invalid("choices", fmt.Sprintf("choice %q is longer than %d characters", truncate(label), MaxLabelLength))
			}
			out.Choices = append(out.Choices, models.Choice{ID: out.NextChoiceID(), Label: label})
			continue
		}

		idx := choiceIndex(out.Choices, *edit.ID)
		if idx < 0 {
			return models.Poll{}, invalid("choices", fmt.Sprintf("unknown choice id %d", *edit.ID))
		}
		l, err := cleanLabel(fmt.Sprintf("choice %d", *edit.ID), label)
		if err != nil {
			return models.Poll{}, err
		}
		out.Choices[idx].Label = l
	}
	if len(out.Choices) < MinChoices {
		return models.Poll{}, invalid("choices", fmt.Sprintf("at least %d non-empty choices required", MinChoices))
	}

	if req.MaxVotes != nil {
		mv := *req.MaxVotes
		if mv < 1 {
			return models.Poll{}, invalid("max_votes", "must be at least 1")
		}
		out.MaxVotes = mv
	}
	out.MaxVotes = min(out.MaxVotes, len(out.Choices))
	if out.MaxVotes < poll.MaxVotes && poll.TotalVotes() > 0 {
		return models.Poll{}, invalid("max_votes", "cannot be lowered once votes are cast; reset the votes first")
	}

	normalizeHide(&out)
	return out, nil
}

// Create inserts a poll for topic. A topic that already has one fails with
// ErrPollAlreadyExists.
func (e PollEditor) Create(ctx context.Context, tx PollTx, topic models.Topic, author models.Principal, req models.CreatePollRequest, now time.Time) (models.Poll, error) {
	_, err := tx.LoadByTopic(ctx, topic.ID)
	if err == nil {
		return models.Poll{}, ErrPollAlreadyExists
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Poll{}, storeErr(err, ErrPollNotFound)
	}

	poll, err := e.BuildNew(req, topic, author, now)
	if err != nil {
		return models.Poll{}, err
	}
	if err := tx.Save(ctx, poll); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Poll{}, fmt.Errorf("%w: %w", ErrPollAlreadyExists, err)
		}
		return models.Poll{}, storeErr(err, ErrTopicNotFound)
	}
	return reload(ctx, tx, topic.ID)
}

// Update applies req to poll and persists it. Tallies are untouched.
func (e PollEditor) Update(ctx context.Context, tx PollTx, poll models.Poll, req models.UpdatePollRequest, now time.Time) (models.Poll, error) {
	updated, err := e.ApplyUpdate(poll, req, now)
	if err != nil {
		return models.Poll{}, err
	}
	if err := tx.Save(ctx, updated); err != nil {
		return models.Poll{}, storeErr(err, ErrPollNotFound)
	}
	return reload(ctx, tx, poll.TopicID)
}

// ResetVotes zeroes every tally and forgets who voted, guests included.
func (PollEditor) ResetVotes(ctx context.Context, tx PollTx, poll models.Poll, now time.Time) (models.Poll, error) {
	if err := tx.ResetVotes(ctx, poll.ID, now.UnixMilli()); err != nil {
		return models.Poll{}, storeErr(err, ErrPollNotFound)
	}
	return reload(ctx, tx, poll.TopicID)
}

func reload(ctx context.Context, tx PollTx, topicID int64) (models.Poll, error) {
	poll, err := tx.LoadByTopic(ctx, topicID)
	if err != nil {
		return models.Poll{}, storeErr(err, ErrPollNotFound)
	}
	return poll, nil
}

func cleanLabel(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(field, "must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxLabelLength {
		return "", invalid(field, fmt.Sprintf("longer than %d characters", MaxLabelLength))
	}
	return s, nil
}

func checkExpireDays(days int) error {
	if days < 0 || days > MaxExpireDays {
		return invalid("expire_days", fmt.Sprintf("must be between 0 and %d", MaxExpireDays))
	}
	return nil
}

// expireTime is 0 (never) for days == 0.
func expireTime(days int, now time.Time) int64 {
	if days == 0 {
		return 0
	}
	return now.Add(time.Duration(days) * 24 * time.Hour).Unix()
}

// normalizeHide downgrades hide-until-expired on a poll that never expires.
func normalizeHide(p *models.Poll) {
	if p.HideResults == models.HideUntilExpired && p.ExpireTime == 0 {
		p.HideResults = models.HideUntilVoted
	}
}

func choiceIndex(choices []models.Choice, id int) int {
	for i, c := range choices {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= 20 {
		return s
	}
	return string(r[:20]) + "..."
}
