// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forum

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/danielhkuo/topic-polls/auth"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/store"
)

// LoggedEntry is a moderation log row as stored.
type LoggedEntry struct {
	ID       string         `json:"id"`
	Action   string         `json:"action"`
	TopicID  int64          `json:"topic_id"`
	MemberID int64          `json:"member_id"`
	Details  map[string]any `json:"details"`
	LoggedAt int64          `json:"logged_at"`
}

// toLogged stamps entry with an id and time and hashes its IP into the details.
func toLogged(entry polls.LogEntry, ipSalt string, now time.Time) LoggedEntry {
	details := make(map[string]any, len(entry.Details)+1)
	for k, v := range entry.Details {
		details[k] = v
	}
	if entry.IP != "" {
		details["ip_hash"] = auth.HashIP(entry.IP, ipSalt)
	}
	return LoggedEntry{
		ID:       uuid.NewString(),
		Action:   entry.Action.String(),
		TopicID:  entry.TopicID,
		MemberID: entry.MemberID,
		Details:  details,
		LoggedAt: now.Unix(),
	}
}

// SQLModerationLog writes entries to the moderation_log table.
type SQLModerationLog struct {
	db     *sql.DB
	ipSalt string
}

func NewSQLModerationLog(db *sql.DB, ipSalt string) *SQLModerationLog {
	return &SQLModerationLog{db: db, ipSalt: ipSalt}
}

func (l *SQLModerationLog) Record(ctx context.Context, entry polls.LogEntry) {
	if err := l.insert(ctx, toLogged(entry, l.ipSalt, time.Now())); err != nil {
		slog.Warn("moderation log write failed",
			"action", entry.Action.String(),
			"topic_id", entry.TopicID,
			"error", err,
		)
	}
}

func (l *SQLModerationLog) insert(ctx context.Context, e LoggedEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO moderation_log (id, action, topic_id, member_id, details, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Action, e.TopicID, e.MemberID, string(details), e.LoggedAt)
	if err != nil {
		return store.Classify("insert moderation log", err)
	}
	return nil
}

// Entries lists a topic's moderation log, oldest first.
func (l *SQLModerationLog) Entries(ctx context.Context, topicID int64) ([]LoggedEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, action, topic_id, member_id, details, logged_at
		FROM moderation_log
		WHERE topic_id = $1
		ORDER BY logged_at, id
	`, topicID)
	if err != nil {
		return nil, store.Classify("query moderation log", err)
	}
	defer rows.Close()

	var entries []LoggedEntry
	for rows.Next() {
		var e LoggedEntry
		var details string
		if err := rows.Scan(&e.ID, &e.Action, &e.TopicID, &e.MemberID, &details, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan moderation log: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("query moderation log", err)
	}
	return entries, nil
}

// KafkaModerationLog publishes entries as JSON keyed by topic id. Produce is
// asynchronous; failures are logged from the delivery callback.
type KafkaModerationLog struct {
	client *kgo.Client
	ipSalt string
}

// NewKafkaModerationLog connects a producer for topic on brokers.
func NewKafkaModerationLog(brokers []string, topic, ipSalt string) (*KafkaModerationLog, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaModerationLog{client: client, ipSalt: ipSalt}, nil
}

func (l *KafkaModerationLog) Record(ctx context.Context, entry polls.LogEntry) {
	value, err := json.Marshal(toLogged(entry, l.ipSalt, time.Now()))
	if err != nil {
		slog.Warn("moderation log encode failed", "action", entry.Action.String(), "error", err)
		return
	}
	rec := &kgo.Record{
		Key:   []byte(strconv.FormatInt(entry.TopicID, 10)),
		Value: value,
	}
	// The request context ends before delivery; the record must outlive it.
	l.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err != nil {
			slog.Warn("moderation log publish failed",
				"action", entry.Action.String(),
				"topic_id", entry.TopicID,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and closes the producer.
func (l *KafkaModerationLog) Close(ctx context.Context) {
	if err := l.client.Flush(ctx); err != nil {
		slog.Warn("moderation log flush failed", "error", err)
	}
	l.client.Close()
}

// Fanout records every entry in each of its logs.
type Fanout []polls.ModerationLog

func (f Fanout) Record(ctx context.Context, entry polls.LogEntry) {
	for _, l := range f {
		l.Record(ctx, entry)
	}
}
