// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forum_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/topic-polls/auth"
	"github.com/danielhkuo/topic-polls/forum"
	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/testutil"
)

func TestSQLOracle(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	oracle := forum.NewSQLOracle(conn)
	ctx := context.Background()

	require.NoError(t, oracle.Grant(ctx, 7, 10, models.CapPollVote, models.CapPollView))
	require.NoError(t, oracle.Grant(ctx, 7, 10, models.CapPollVote), "granting twice is a no-op")
	require.NoError(t, oracle.Grant(ctx, 8, forum.WildcardBoard, models.CapPollEditAny))
	require.NoError(t, oracle.AddModerator(ctx, 10, 50))
	require.NoError(t, oracle.AddModerator(ctx, forum.WildcardBoard, 60))

	tests := []struct {
		name     string
		memberID int64
		cap      models.Capability
		boardID  int64
		want     bool
	}{
		{"granted on board", 7, models.CapPollVote, 10, true},
		{"not granted on other board", 7, models.CapPollVote, 11, false},
		{"capability not granted", 7, models.CapPollEditOwn, 10, false},
		{"wildcard grant", 8, models.CapPollEditAny, 99, true},
		{"other member", 9, models.CapPollVote, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oracle.HasCapability(ctx, tt.memberID, tt.cap, tt.boardID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	mods := []struct {
		boardID, memberID int64
		want              bool
	}{
		{10, 50, true},
		{11, 50, false},
		{11, 60, true},
		{10, 7, false},
	}
	for _, m := range mods {
		got, err := oracle.IsModerator(ctx, m.boardID, m.memberID)
		require.NoError(t, err)
		assert.Equal(t, m.want, got, "IsModerator(%d, %d)", m.boardID, m.memberID)
	}
}

func TestSQLModerationLog(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	log := forum.NewSQLModerationLog(conn, "salt")
	ctx := context.Background()

	log.Record(ctx, polls.LogEntry{
		Action:   models.ActionLock,
		TopicID:  1,
		MemberID: 50,
		IP:       "203.0.113.9",
		Details:  map[string]any{"poll_id": "p1", "to": "locked_by_moderator"},
	})
	log.Record(ctx, polls.LogEntry{Action: models.ActionRemove, TopicID: 2, MemberID: 50})

	entries, err := log.Entries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "lock_poll", e.Action)
	assert.Equal(t, int64(50), e.MemberID)
	assert.NotZero(t, e.LoggedAt)
	assert.Equal(t, "p1", e.Details["poll_id"])
	assert.Equal(t, "locked_by_moderator", e.Details["to"])
	assert.Equal(t, auth.HashIP("203.0.113.9", "salt"), e.Details["ip_hash"])
	assert.NotContains(t, e.Details, "ip")

	entries, err = log.Entries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Details, "ip_hash", "no IP, no hash")
}

type memLog struct {
	entries []polls.LogEntry
}

func (m *memLog) Record(ctx context.Context, e polls.LogEntry) {
	m.entries = append(m.entries, e)
}

func TestFanout(t *testing.T) {
	a, b := &memLog{}, &memLog{}
	f := forum.Fanout{a, b}

	f.Record(context.Background(), polls.LogEntry{Action: models.ActionReset, TopicID: 3})

	require.Len(t, a.entries, 1)
	require.Len(t, b.entries, 1)
	assert.Equal(t, models.ActionReset, b.entries[0].Action)
}
