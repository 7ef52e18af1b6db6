// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the SQL implementation of the poll core's persistence port.

	st := store.New(conn)
	svc := polls.NewService(polls.Deps{Store: st, ...})

Every mutation happens inside InTx. LockByTopic bumps the poll's revision
first, which serializes concurrent transactions on the same poll. Vote
tallies change only through AtomicIncrementVotes, an in-place
votes = votes + delta that refuses to go below zero; Save never writes
counters, so a stale in-memory poll can never overwrite a newer tally.

Errors are wrapped sentinel values:

  - sentinel.ErrNotFound for missing topics and polls
  - sentinel.ErrConflict for unique violations and refused deltas
  - sentinel.ErrUnavailable for connection failures (safe to retry)

Classify applies the same wrapping to errors from other packages that share
the connection.
*/
package store
