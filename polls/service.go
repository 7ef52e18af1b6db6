// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielhkuo/topic-polls/metrics"
	"github.com/danielhkuo/topic-polls/models"
	"github.com/danielhkuo/topic-polls/sentinel"
)

const tracerName = "github.com/danielhkuo/topic-polls/polls"

// ActionContext is the per-request input every poll action receives.
type ActionContext struct {
	TopicID    int64
	Principal  models.Principal
	FormToken  string // required by mutating actions
	GuestToken string // guest vote cookie, if any
}

// Deps wires a Service to its collaborators.
type Deps struct {
	Store        PollStore
	Oracle       PermissionOracle
	Session      Session
	ModLog       ModerationLog
	Guests       *GuestVoteTracker
	Metrics      *metrics.Metrics     // optional
	Tracer       trace.TracerProvider // defaults to the global provider
	Now          func() time.Time     // defaults to time.Now
	StoreRetries int
}

// Service runs the poll actions. Each mutating action checks the form token,
// resolves grants, then loads, checks and changes the poll in one transaction
// holding the poll's lock.
type Service struct {
	store   PollStore
	oracle  PermissionOracle
	session Session
	modlog  ModerationLog
	guests  *GuestVoteTracker
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	retries uint64

	editor  PollEditor
	tallier VoteTallier
}

func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	tp := d.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	retries := d.StoreRetries
	if retries < 0 {
		retries = 0
	}
	return &Service{
		store:   d.Store,
		oracle:  d.Oracle,
		session: d.Session,
		modlog:  d.ModLog,
		guests:  d.Guests,
		metrics: d.Metrics,
		tracer:  tp.Tracer(tracerName),
		now:     now,
		retries: uint64(retries),
		tallier: VoteTallier{guests: d.Guests},
	}
}

// CastResult is a successful CastVotes.
type CastResult struct {
	View       models.PollView
	Revoted    bool
	GuestToken string // empty for members
}

// observe starts a span for action and returns the func that ends it.
func (s *Service) observe(ctx context.Context, action models.Action, ac ActionContext) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "polls."+action.String())
	span.SetAttributes(
		attribute.Int64("poll.topic_id", ac.TopicID),
		attribute.Int64("poll.member_id", ac.Principal.MemberID),
	)

	return ctx, func(err error) {
		class := Classify(err)
		span.SetAttributes(attribute.String("poll.outcome", class.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, class.String())
			level := slog.LevelInfo
			if class == ClassInternal || class == ClassUnavailable {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "poll action failed",
				"action", action.String(),
				"topic_id", ac.TopicID,
				"member_id", ac.Principal.MemberID,
				"class", class.String(),
				"error", err,
			)
		}
		s.metrics.ObserveOperation(action.String(), class.String(), time.Since(start))
		span.End()
	}
}

// prepare loads the topic and the principal's grants on its board. Neither
// runs inside the poll transaction.
func (s *Service) prepare(ctx context.Context, ac ActionContext) (models.Topic, Grants, error) {
	var topic models.Topic
	err := s.retry(ctx, func() error {
		var err error
		topic, err = s.store.Topic(ctx, ac.TopicID)
		return storeErr(err, ErrTopicNotFound)
	})
	if err != nil {
		return models.Topic{}, Grants{}, err
	}

	var grants Grants
	err = s.retry(ctx, func() error {
		var err error
		grants, err = ResolveGrants(ctx, s.oracle, ac.Principal, topic.BoardID)
		return err
	})
	if err != nil {
		return models.Topic{}, Grants{}, err
	}
	return topic, grants, nil
}

// verifyForm consumes the form token of a mutating action.
func (s *Service) verifyForm(ctx context.Context, ac ActionContext) error {
	return storeErr(s.session.VerifyNotDoubleSubmitted(ctx, ac.FormToken), ErrDoubleSubmission)
}

// ballot reads the principal's standing on poll inside tx.
func (s *Service) ballot(ctx context.Context, tx PollTx, poll *models.Poll, topic models.Topic, grants Grants, ac ActionContext, now time.Time) (Ballot, error) {
	in := EvalInput{Poll: poll, Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}

	var prior []int
	if ac.Principal.IsGuest() {
		prior, in.HasVoted = s.guests.Voted(ac.GuestToken, *poll)
	} else {
		var err error
		prior, err = tx.MemberChoices(ctx, poll.ID, ac.Principal.MemberID)
		if err != nil {
			return Ballot{}, storeErr(err, ErrPollNotFound)
		}
		in.HasVoted = len(prior) > 0
	}

	return Ballot{Voter: ac.Principal, Prior: prior, Caps: Evaluate(in), Eval: in}, nil
}

func (s *Service) render(ctx context.Context, tx PollTx, poll models.Poll, caps models.Capabilities, mine []int, now time.Time) (models.PollView, error) {
	members, err := tx.CountMemberVoters(ctx, poll.ID)
	if err != nil {
		return models.PollView{}, storeErr(err, ErrPollNotFound)
	}
	return BuildView(poll, caps, mine, members+poll.NumGuestVoters, now), nil
}

func (s *Service) record(ctx context.Context, action models.Action, ac ActionContext, details map[string]any) {
	if s.modlog == nil {
		return
	}
	s.modlog.Record(ctx, LogEntry{
		Action:   action,
		TopicID:  ac.TopicID,
		MemberID: ac.Principal.MemberID,
		IP:       ac.Principal.IP,
		Details:  details,
	})
}

// IssueFormToken mints a form token for a client that has no poll view to
// take one from, e.g. before adding a poll.
func (s *Service) IssueFormToken(ctx context.Context) (string, error) {
	tok, err := s.session.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("issue form token: %w", storeErr(err, ErrDoubleSubmission))
	}
	return tok, nil
}

// View renders the topic's poll for the principal and issues a fresh form token.
// A topic without a poll renders an empty view whose capabilities only say
// whether the principal may add one.
func (s *Service) View(ctx context.Context, ac ActionContext) (view models.PollView, err error) {
	ctx, done := s.observe(ctx, models.ActionView, ac)
	defer func() { done(err) }()

	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return models.PollView{}, err
	}
	if !grants.Moderator && !grants.Has(models.CapPollView) {
		return models.PollView{}, denied(models.ActionView, "", "missing poll_view")
	}

	now := s.now()
	err = s.inTx(ctx, func(tx PollTx) error {
		poll, err := tx.LoadByTopic(ctx, topic.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			view = models.PollView{
				TopicID:      topic.ID,
				Choices:      []models.ChoiceView{},
				Capabilities: Evaluate(EvalInput{Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}),
			}
			return nil
		}
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		b, err := s.ballot(ctx, tx, &poll, topic, grants, ac, now)
		if err != nil {
			return err
		}
		view, err = s.render(ctx, tx, poll, b.Caps, b.Prior, now)
		return err
	})
	if err != nil {
		return models.PollView{}, err
	}

	view.FormToken, err = s.IssueFormToken(ctx)
	if err != nil {
		return models.PollView{}, err
	}
	return view, nil
}

// Create adds a poll to the topic.
func (s *Service) Create(ctx context.Context, ac ActionContext, req models.CreatePollRequest) (poll models.Poll, err error) {
	ctx, done := s.observe(ctx, models.ActionAdd, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return models.Poll{}, err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return models.Poll{}, err
	}

	now := s.now()
	err = s.inTx(ctx, func(tx PollTx) error {
		in := EvalInput{Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}
		if !Evaluate(in).AllowAdd {
			return denied(models.ActionAdd, in.scope(), "")
		}
		var err error
		poll, err = s.editor.Create(ctx, tx, topic, ac.Principal, req, now)
		return err
	})
	if err != nil {
		return models.Poll{}, err
	}

	slog.Info("poll created",
		"topic_id", topic.ID,
		"poll_id", poll.ID,
		"member_id", ac.Principal.MemberID,
		"choices", len(poll.Choices),
	)
	s.record(ctx, models.ActionAdd, ac, map[string]any{"poll_id": poll.ID})
	return poll, nil
}

// Update edits the topic's poll.
func (s *Service) Update(ctx context.Context, ac ActionContext, req models.UpdatePollRequest) (poll models.Poll, err error) {
	ctx, done := s.observe(ctx, models.ActionEdit, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return models.Poll{}, err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return models.Poll{}, err
	}

	now := s.now()
	err = s.inTx(ctx, func(tx PollTx) error {
		current, err := tx.LockByTopic(ctx, topic.ID)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		in := EvalInput{Poll: &current, Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}
		if !Evaluate(in).AllowEdit {
			return denied(models.ActionEdit, in.scope(), "")
		}
		poll, err = s.editor.Update(ctx, tx, current, req, now)
		return err
	})
	if err != nil {
		return models.Poll{}, err
	}

	slog.Info("poll edited", "topic_id", topic.ID, "poll_id", poll.ID, "member_id", ac.Principal.MemberID)
	s.record(ctx, models.ActionEdit, ac, map[string]any{"poll_id": poll.ID})
	return poll, nil
}

// Remove deletes the topic's poll with all its votes.
func (s *Service) Remove(ctx context.Context, ac ActionContext) (err error) {
	ctx, done := s.observe(ctx, models.ActionRemove, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return err
	}

	now := s.now()
	var pollID string
	err = s.inTx(ctx, func(tx PollTx) error {
		poll, err := tx.LockByTopic(ctx, topic.ID)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		in := EvalInput{Poll: &poll, Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}
		if !Evaluate(in).AllowRemove {
			return denied(models.ActionRemove, in.scope(), "")
		}
		pollID = poll.ID
		return storeErr(tx.Delete(ctx, poll.ID), ErrPollNotFound)
	})
	if err != nil {
		return err
	}

	slog.Info("poll removed", "topic_id", topic.ID, "poll_id", pollID, "member_id", ac.Principal.MemberID)
	s.record(ctx, models.ActionRemove, ac, map[string]any{"poll_id": pollID})
	return nil
}

// CastVotes records the principal's selection. A member who already voted
// on a poll that allows changing votes has the earlier vote replaced.
func (s *Service) CastVotes(ctx context.Context, ac ActionContext, choiceIDs []int) (res CastResult, err error) {
	ctx, done := s.observe(ctx, models.ActionVote, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return CastResult{}, err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return CastResult{}, err
	}

	now := s.now()
	var (
		pollID    string
		cast      int
		withdrawn int
	)
	err = s.inTx(ctx, func(tx PollTx) error {
		poll, err := tx.LockByTopic(ctx, topic.ID)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		b, err := s.ballot(ctx, tx, &poll, topic, grants, ac, now)
		if err != nil {
			return err
		}
		out, err := s.tallier.Cast(ctx, tx, poll, b, choiceIDs, now)
		if err != nil {
			return err
		}
		cast = len(out.Choices)
		if out.Revoted {
			withdrawn = len(b.Prior)
		}

		poll, err = reload(ctx, tx, topic.ID)
		if err != nil {
			return err
		}
		after := b.Eval
		after.Poll = &poll
		after.HasVoted = true

		view, err := s.render(ctx, tx, poll, Evaluate(after), out.Choices, now)
		if err != nil {
			return err
		}
		pollID = poll.ID
		res = CastResult{View: view, Revoted: out.Revoted, GuestToken: out.GuestToken}
		return nil
	})
	if err != nil {
		return CastResult{}, err
	}

	s.metrics.AddVotesWithdrawn(withdrawn)
	s.metrics.AddVotesCast(ac.Principal.IsGuest(), cast)
	slog.Info("votes cast",
		"topic_id", topic.ID,
		"poll_id", pollID,
		"member_id", ac.Principal.MemberID,
		"revoted", res.Revoted,
	)
	return res, nil
}

// WithdrawVotes removes the member's vote. Having no vote is not an error.
func (s *Service) WithdrawVotes(ctx context.Context, ac ActionContext) (view models.PollView, err error) {
	ctx, done := s.observe(ctx, models.ActionWithdraw, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return models.PollView{}, err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return models.PollView{}, err
	}

	now := s.now()
	var (
		pollID  string
		removed []int
	)
	err = s.inTx(ctx, func(tx PollTx) error {
		poll, err := tx.LockByTopic(ctx, topic.ID)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		b, err := s.ballot(ctx, tx, &poll, topic, grants, ac, now)
		if err != nil {
			return err
		}
		removed, err = s.tallier.Withdraw(ctx, tx, poll, b)
		if err != nil {
			return err
		}

		poll, err = reload(ctx, tx, topic.ID)
		if err != nil {
			return err
		}
		after := b.Eval
		after.Poll = &poll
		after.HasVoted = false

		pollID = poll.ID
		view, err = s.render(ctx, tx, poll, Evaluate(after), nil, now)
		return err
	})
	if err != nil {
		return models.PollView{}, err
	}

	if len(removed) > 0 {
		s.metrics.AddVotesWithdrawn(len(removed))
		slog.Info("votes withdrawn",
			"topic_id", topic.ID,
			"poll_id", pollID,
			"member_id", ac.Principal.MemberID,
			"choices", removed,
		)
	}
	return view, nil
}

// ToggleLock moves the poll's lock state per intent and returns the new state.
func (s *Service) ToggleLock(ctx context.Context, ac ActionContext, intent models.LockIntent) (state models.LockState, err error) {
	ctx, done := s.observe(ctx, models.ActionLock, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return models.Unlocked, err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return models.Unlocked, err
	}

	now := s.now()
	var (
		pollID string
		from   models.LockState
	)
	err = s.inTx(ctx, func(tx PollTx) error {
		poll, err := tx.LockByTopic(ctx, topic.ID)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		in := EvalInput{Poll: &poll, Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}
		if !Evaluate(in).AllowLockPoll {
			return denied(models.ActionLock, in.scope(), "")
		}
		if err := checkIntent(poll.VotingLocked, intent); err != nil {
			return err
		}
		next, err := NextLockState(poll.VotingLocked, grants.LockAuthority())
		if err != nil {
			return err
		}

		ok, err := tx.CompareAndSetLock(ctx, poll.ID, poll.VotingLocked, next)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		if !ok {
			return fmt.Errorf("%w: lock state changed concurrently", ErrAlreadyInRequestedLockState)
		}
		pollID, from, state = poll.ID, poll.VotingLocked, next
		return nil
	})
	if err != nil {
		return models.Unlocked, err
	}

	s.metrics.IncLockTransition(state.String())
	slog.Info("poll lock toggled",
		"topic_id", topic.ID,
		"poll_id", pollID,
		"member_id", ac.Principal.MemberID,
		"from", from.String(),
		"to", state.String(),
	)
	s.record(ctx, models.ActionLock, ac, map[string]any{
		"poll_id": pollID,
		"from":    from.String(),
		"to":      state.String(),
	})
	return state, nil
}

// ResetVotes zeroes the poll's tallies and forgets every voter.
func (s *Service) ResetVotes(ctx context.Context, ac ActionContext) (view models.PollView, err error) {
	ctx, done := s.observe(ctx, models.ActionReset, ac)
	defer func() { done(err) }()

	if err := s.verifyForm(ctx, ac); err != nil {
		return models.PollView{}, err
	}
	topic, grants, err := s.prepare(ctx, ac)
	if err != nil {
		return models.PollView{}, err
	}

	now := s.now()
	var pollID string
	err = s.inTx(ctx, func(tx PollTx) error {
		poll, err := tx.LockByTopic(ctx, topic.ID)
		if err != nil {
			return storeErr(err, ErrPollNotFound)
		}
		in := EvalInput{Poll: &poll, Topic: topic, Principal: ac.Principal, Grants: grants, Now: now}
		if !Evaluate(in).AllowResetVotes {
			return denied(models.ActionReset, ScopeAny, "")
		}
		poll, err = s.editor.ResetVotes(ctx, tx, poll, now)
		if err != nil {
			return err
		}
		in.Poll = &poll
		pollID = poll.ID
		view, err = s.render(ctx, tx, poll, Evaluate(in), nil, now)
		return err
	})
	if err != nil {
		return models.PollView{}, err
	}

	slog.Info("poll votes reset", "topic_id", topic.ID, "poll_id", pollID, "member_id", ac.Principal.MemberID)
	s.record(ctx, models.ActionReset, ac, map[string]any{"poll_id": pollID})
	return view, nil
}
