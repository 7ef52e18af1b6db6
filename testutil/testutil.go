// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/topic-polls/cliparse"
	"github.com/danielhkuo/topic-polls/db"
	"github.com/danielhkuo/topic-polls/forum"
	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/store"
)

// MemberCaps is what an ordinary member holds on the test board.
var MemberCaps = []models.Capability{
	models.CapPollView,
	models.CapPollVote,
	models.CapPollAddOwn,
	models.CapPollEditOwn,
	models.CapPollLockOwn,
	models.CapPollRemoveOwn,
}

// SetupTestDB creates a fresh SQLite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, filepath.Join(t.TempDir(), "polls.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    "polls.db",
		DatabaseType:   db.TypeSQLite,
		GuestTokenSalt: "test-guest-salt",
		IPHashSalt:     "test-ip-salt",
		FormTokenTTL:   time.Hour,
		StoreRetries:   0,
	}
}

// Env is a poll service wired to a test database.
type Env struct {
	DB      *sql.DB
	Store   *store.SQLStore
	Oracle  *forum.SQLOracle
	Session *forum.MemorySession
	ModLog  *forum.SQLModerationLog
	Guests  *polls.GuestVoteTracker
	Service *polls.Service
	Clock   *Clock
}

// NewEnv builds the service on top of conn with a controllable clock.
func NewEnv(t *testing.T, conn *sql.DB) *Env {
	t.Helper()

	cfg := GetTestConfig()
	clock := NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	env := &Env{
		DB:      conn,
		Store:   store.New(conn),
		Oracle:  forum.NewSQLOracle(conn),
		Session: forum.NewMemorySession(cfg.FormTokenTTL),
		ModLog:  forum.NewSQLModerationLog(conn, cfg.IPHashSalt),
		Guests:  polls.NewGuestVoteTracker(cfg.GuestTokenSalt),
		Clock:   clock,
	}
	env.Service = polls.NewService(polls.Deps{
		Store:        env.Store,
		Oracle:       env.Oracle,
		Session:      env.Session,
		ModLog:       env.ModLog,
		Guests:       env.Guests,
		Now:          clock.Now,
		StoreRetries: cfg.StoreRetries,
	})
	return env
}

// FormToken issues a fresh form token.
func (e *Env) FormToken(t *testing.T) string {
	t.Helper()
	tok, err := e.Session.Issue(context.Background())
	if err != nil {
		t.Fatalf("Failed to issue form token: %v", err)
	}
	return tok
}

// Member returns an action context for memberID with a fresh form token.
func (e *Env) Member(t *testing.T, topicID, memberID int64) polls.ActionContext {
	t.Helper()
	return polls.ActionContext{
		TopicID:   topicID,
		Principal: models.Principal{MemberID: memberID, Name: "member", IP: "192.0.2.1"},
		FormToken: e.FormToken(t),
	}
}

// Guest returns a guest action context with a fresh form token.
func (e *Env) Guest(t *testing.T, topicID int64, guestToken string) polls.ActionContext {
	t.Helper()
	return polls.ActionContext{
		TopicID:    topicID,
		Principal:  models.Principal{IP: "198.51.100.7"},
		FormToken:  e.FormToken(t),
		GuestToken: guestToken,
	}
}

// CreateTestTopic inserts a topic on boardID started by starterID
func CreateTestTopic(t *testing.T, conn *sql.DB, topicID, boardID, starterID int64) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO topic (id, board_id, starter_member_id)
		VALUES ($1, $2, $3)
	`, topicID, boardID, starterID)
	if err != nil {
		t.Fatalf("Failed to create test topic: %v", err)
	}
}

// Grant gives memberID capabilities on boardID
func Grant(t *testing.T, conn *sql.DB, memberID, boardID int64, caps ...models.Capability) {
	t.Helper()
	if err := forum.NewSQLOracle(conn).Grant(context.Background(), memberID, boardID, caps...); err != nil {
		t.Fatalf("Failed to grant capabilities: %v", err)
	}
}

// AddModerator makes memberID a moderator of boardID
func AddModerator(t *testing.T, conn *sql.DB, boardID, memberID int64) {
	t.Helper()
	if err := forum.NewSQLOracle(conn).AddModerator(context.Background(), boardID, memberID); err != nil {
		t.Fatalf("Failed to add moderator: %v", err)
	}
}

// CreateTestPoll adds a poll through the service as the topic starter and
// returns it. The starter must hold poll_add_own.
func CreateTestPoll(t *testing.T, env *Env, topicID, starterID int64, req models.CreatePollRequest) models.Poll {
	t.Helper()

	poll, err := env.Service.Create(context.Background(), env.Member(t, topicID, starterID), req)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return poll
}

// LoadPoll reads the topic's poll straight from the store
func LoadPoll(t *testing.T, env *Env, topicID int64) models.Poll {
	t.Helper()

	var poll models.Poll
	err := env.Store.InTx(context.Background(), func(tx polls.PollTx) error {
		var err error
		poll, err = tx.LoadByTopic(context.Background(), topicID)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load poll: %v", err)
	}
	return poll
}

// VoteRecords lists the poll's member votes straight from the store
func VoteRecords(t *testing.T, env *Env, pollID string) []models.VoteRecord {
	t.Helper()

	var recs []models.VoteRecord
	err := env.Store.InTx(context.Background(), func(tx polls.PollTx) error {
		var err error
		recs, err = tx.VoteRecords(context.Background(), pollID)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load vote records: %v", err)
	}
	return recs
}

// Votes maps choice id to tally
func Votes(p models.Poll) map[int]int {
	m := make(map[int]int, len(p.Choices))
	for _, c := range p.Choices {
		m[c.ID] = c.Votes
	}
	return m
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
