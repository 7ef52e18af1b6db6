// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package polls is the poll core: who may do what to a topic's poll, and how
each action changes it.

# Components

  - Evaluate: derives models.Capabilities from the poll, the topic, the
    principal's Grants and whether they already voted. Pure.
  - NextLockState: the voting lock transition table.
  - PollEditor: validates and applies create, update and reset.
  - VoteTallier: casts, changes and withdraws votes with per-choice deltas.
  - GuestVoteTracker: counts guest voters and signs their tokens.
  - Service: runs one action end to end.

# Action Flow

Every mutating Service method follows the same steps:

 1. Consume the form token (Session). Failure aborts with ErrDoubleSubmission.
 2. Load the topic and resolve grants, outside any transaction.
 3. In one PollStore transaction: LockByTopic, evaluate permissions on the
    freshly loaded poll, apply the change, commit.
 4. Log, count and record the moderation log entry.

A re-vote withdraws the old selection and casts the new one in the same
transaction, so either both land or neither does.

# Lock States

	unlocked             -> locked_by_moderator (moderator) | locked_by_user
	locked_by_user       -> unlocked
	locked_by_moderator  -> unlocked (moderator) | ErrLockedByModerator

Holders of poll_lock_any count as moderators here.

# Errors

Classify buckets errors for the caller:

	ClassValidation   ErrValidation, ErrTooManyChoicesSelected, ErrNoChoiceSelected
	ClassConflict     ErrLockedByModerator, ErrAlreadyInRequestedLockState,
	                  ErrPollAlreadyExists, ErrDoubleSubmission
	ClassPermission   ErrPermissionDenied (*PermissionError carries own/any)
	ClassNotFound     ErrPollNotFound, ErrTopicNotFound
	ClassUnavailable  ErrStoreUnavailable

Only ErrStoreUnavailable is retried, with bounded exponential backoff.

# Guest Votes

Guests are principals with MemberID 0. A guest vote increments the
choices and num_guest_voters and returns a signed token (poll id, cast time,
choices) for the client to keep. A token older than the poll's last reset
no longer counts as a vote. Nothing stops a guest who discards the token
from voting again.
*/
package polls
