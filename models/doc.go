// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the poll API.

# Domain Types

  - Topic: forum thread that may own at most one poll
  - Poll: question, settings, lock state and guest counter
  - Choice: selectable option with its vote tally
  - VoteRecord: one member's selection of one choice
  - Principal: acting member (MemberID 0 for guests)
  - Capabilities: derived poll permissions for a principal

# Request Types

  - CreatePollRequest: question, max_votes, hide_results, change_vote, guest_vote, expire_days, choices
  - UpdatePollRequest: optional fields plus choice edits
  - CastVotesRequest: choice ids
  - LockRequest: intent (toggle, lock, unlock)

# Response Types

  - PollView: poll with tallies hidden per hide_results, capabilities and a fresh form token
  - CastVotesResponse: updated view and whether the cast replaced an earlier vote
  - LockResponse: resulting lock state
  - ErrorResponse: error, message

# Constants

Lock states:

	Unlocked          = 0
	LockedByUser      = 1
	LockedByModerator = 2

Result visibility:

	HideNever        = 0
	HideUntilVoted   = 1
	HideUntilExpired = 2
	HideAlways       = 3

Actions are an enum (ActionView, ActionAdd, ActionEdit, ActionRemove,
ActionVote, ActionWithdraw, ActionLock, ActionReset) dispatched by the
handlers package.
*/
package models
