// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/topic-polls/models"
)

// BuildView renders poll for one principal. Tallies, percentages and the
// voter count are left out unless caps allow viewing results. mine marks the
// principal's own choices.
func BuildView(poll models.Poll, caps models.Capabilities, mine []int, voters int, now time.Time) models.PollView {
	view := models.PollView{
		ID:           poll.ID,
		TopicID:      poll.TopicID,
		Question:     poll.Question,
		PosterName:   poll.PosterName,
		MaxVotes:     poll.MaxVotes,
		HideResults:  poll.HideResults,
		ChangeVote:   poll.ChangeVote,
		GuestVote:    poll.GuestVote,
		ExpireTime:   poll.ExpireTime,
		VotingLocked: poll.VotingLocked,
		Choices:      make([]models.ChoiceView, 0, len(poll.Choices)),
		Capabilities: caps,
	}

	if poll.ExpireTime != 0 {
		exp := time.Unix(poll.ExpireTime, 0)
		if caps.IsExpired {
			view.ExpiresIn = "expired " + humanize.RelTime(exp, now, "ago", "from now")
		} else {
			view.ExpiresIn = humanize.RelTime(exp, now, "ago", "from now")
		}
	}

	voted := make(map[int]bool, len(mine))
	for _, id := range mine {
		voted[id] = true
	}

	total := poll.TotalVotes()
	for _, c := range poll.Choices {
		cv := models.ChoiceView{ID: c.ID, Label: c.Label, Voted: voted[c.ID]}
		if caps.AllowViewResults {
			votes := c.Votes
			cv.Votes = &votes
			if total > 0 {
				cv.Percent = math.Round(float64(votes)*1000/float64(total)) / 10
			}
		}
		view.Choices = append(view.Choices, cv)
	}

	if caps.AllowViewResults {
		view.TotalVoters = &voters
	}
	return view
}
