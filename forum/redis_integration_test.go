// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

//go:build integration

package forum_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/danielhkuo/topic-polls/forum"
	"github.com/danielhkuo/topic-polls/polls"
	"github.com/danielhkuo/topic-polls/testutil/containers"
)

type RedisSessionSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	session *forum.RedisSession
}

func TestRedisSessionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSessionSuite))
}

func (s *RedisSessionSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.session = forum.NewRedisSession(s.redis.Client, time.Minute)
}

func (s *RedisSessionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSessionSuite) TestSingleUse() {
	ctx := context.Background()

	tok, err := s.session.Issue(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.session.VerifyNotDoubleSubmitted(ctx, tok))
	s.ErrorIs(s.session.VerifyNotDoubleSubmitted(ctx, tok), polls.ErrDoubleSubmission)
	s.ErrorIs(s.session.VerifyNotDoubleSubmitted(ctx, ""), polls.ErrDoubleSubmission)
	s.ErrorIs(s.session.VerifyNotDoubleSubmitted(ctx, "never-issued"), polls.ErrDoubleSubmission)
}

func (s *RedisSessionSuite) TestTokenExpires() {
	ctx := context.Background()
	short := forum.NewRedisSession(s.redis.Client, time.Second)

	tok, err := short.Issue(ctx)
	s.Require().NoError(err)

	ttl, err := s.redis.Client.TTL(ctx, "poll:form:"+tok).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, time.Second)
}

func (s *RedisSessionSuite) TestConcurrentVerify() {
	ctx := context.Background()
	tok, err := s.session.Issue(ctx)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	var passed atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.session.VerifyNotDoubleSubmitted(ctx, tok) == nil {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), passed.Load())
}
