// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package forum implements the poll core's collaborators: the permission
oracle, the form token session and the moderation log.

# Permission Oracle

SQLOracle reads two tables:

	capability_grant (member_id, board_id, capability)
	board_moderator  (board_id, member_id)

A row with board_id 0 applies on every board. Grants for member_id 0 are
what guests hold.

# Sessions

Form tokens are single use. Issue stores one with a TTL;
VerifyNotDoubleSubmitted consumes it and fails with polls.ErrDoubleSubmission
if it was never issued, already used or expired.

  - RedisSession: shared across instances, SET with TTL and GETDEL
  - MemorySession: one process, mutex-guarded map

# Moderation Log

Record never returns an error. Failures are logged at Warn and dropped so
a committed poll change is never undone by its log line.

  - SQLModerationLog: moderation_log table
  - KafkaModerationLog: JSON records keyed by topic id
  - Fanout: both

Client IPs are stored only as auth.HashIP values.
*/
package forum
