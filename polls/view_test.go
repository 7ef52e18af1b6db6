// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/topic-polls/models"
)

func TestBuildViewHidesResults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	poll := *basePoll()
	poll.Choices[0].Votes = 3
	poll.Choices[1].Votes = 1

	view := BuildView(poll, models.Capabilities{AllowVote: true}, nil, 4, now)
	if view.TotalVoters != nil {
		t.Error("TotalVoters should be hidden")
	}
	for _, c := range view.Choices {
		if c.Votes != nil || c.Percent != 0 {
			t.Errorf("choice %d leaks results: %+v", c.ID, c)
		}
	}
	if !view.Capabilities.AllowVote {
		t.Error("capabilities not carried into view")
	}
}

func TestBuildViewShowsResults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	poll := *basePoll()
	poll.Choices = append(poll.Choices, models.Choice{ID: 2, Label: "C"})
	poll.Choices[0].Votes = 2
	poll.Choices[1].Votes = 1

	view := BuildView(poll, models.Capabilities{AllowViewResults: true}, []int{1}, 3, now)
	if view.TotalVoters == nil || *view.TotalVoters != 3 {
		t.Fatalf("TotalVoters = %v", view.TotalVoters)
	}

	want := []struct {
		votes   int
		percent float64
		voted   bool
	}{{2, 66.7, false}, {1, 33.3, true}, {0, 0, false}}
	for i, w := range want {
		c := view.Choices[i]
		if c.Votes == nil || *c.Votes != w.votes || c.Percent != w.percent || c.Voted != w.voted {
			t.Errorf("choice %d = votes %v percent %v voted %v, want %+v", i, c.Votes, c.Percent, c.Voted, w)
		}
	}
}

func TestBuildViewExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	poll := *basePoll()

	if v := BuildView(poll, models.Capabilities{}, nil, 0, now); v.ExpiresIn != "" {
		t.Errorf("ExpiresIn = %q for a poll that never expires", v.ExpiresIn)
	}

	poll.ExpireTime = now.Add(48 * time.Hour).Unix()
	if v := BuildView(poll, models.Capabilities{}, nil, 0, now); !strings.HasSuffix(v.ExpiresIn, "from now") {
		t.Errorf("ExpiresIn = %q", v.ExpiresIn)
	}

	poll.ExpireTime = now.Add(-2 * time.Hour).Unix()
	v := BuildView(poll, models.Capabilities{IsExpired: true}, nil, 0, now)
	if !strings.HasPrefix(v.ExpiresIn, "expired ") || !strings.HasSuffix(v.ExpiresIn, "ago") {
		t.Errorf("ExpiresIn = %q", v.ExpiresIn)
	}
}
