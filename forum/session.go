// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/topic-polls/auth"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/sentinel"
)

const formTokenKeyPrefix = "poll:form:"

// RedisSession keeps single-use form tokens in Redis so every instance sees
// the same consumed set.
type RedisSession struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSession(client *redis.Client, ttl time.Duration) *RedisSession {
	return &RedisSession{client: client, ttl: ttl}
}

func (s *RedisSession) Issue(ctx context.Context) (string, error) {
	token, err := auth.GenerateFormToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, formTokenKeyPrefix+token, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store form token: %w: %w", sentinel.ErrUnavailable, err)
	}
	return token, nil
}

// VerifyNotDoubleSubmitted consumes the token with GETDEL, so two concurrent
// submissions of the same form cannot both pass.
func (s *RedisSession) VerifyNotDoubleSubmitted(ctx context.Context, formToken string) error {
	if formToken == "" {
		return fmt.Errorf("%w: missing form token", polls.ErrDoubleSubmission)
	}
	err := s.client.GetDel(ctx, formTokenKeyPrefix+formToken).Err()
	if errors.Is(err, redis.Nil) {
		return polls.ErrDoubleSubmission
	}
	if err != nil {
		return fmt.Errorf("consume form token: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// MemorySession is the single-instance form token store.
type MemorySession struct {
	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
	ttl    time.Duration
	now    func() time.Time
}

func NewMemorySession(ttl time.Duration) *MemorySession {
	return &MemorySession{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemorySession) Issue(ctx context.Context) (string, error) {
	token, err := auth.GenerateFormToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, exp := range s.tokens {
		if !exp.After(now) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(s.ttl)
	return token, nil
}

func (s *MemorySession) VerifyNotDoubleSubmitted(ctx context.Context, formToken string) error {
	if formToken == "" {
		return fmt.Errorf("%w: missing form token", polls.ErrDoubleSubmission)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.tokens[formToken]
	if !ok {
		return polls.ErrDoubleSubmission
	}
	delete(s.tokens, formToken)
	if !exp.After(s.now()) {
		return fmt.Errorf("%w: form token expired", polls.ErrDoubleSubmission)
	}
	return nil
}
