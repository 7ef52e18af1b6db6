// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("vote", "ok", 10*time.Millisecond)
	m.ObserveOperation("vote", "ok", 10*time.Millisecond)
	m.ObserveOperation("vote", "permission", time.Millisecond)
	m.AddVotesCast(false, 3)
	m.AddVotesCast(true, 1)
	m.AddVotesWithdrawn(2)
	m.IncLockTransition("locked_by_user")
	m.IncStoreRetries()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("vote", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("vote", "permission")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.VotesCast.WithLabelValues("member")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesCast.WithLabelValues("guest")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VotesWithdrawn))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockTransitions.WithLabelValues("locked_by_user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRetries))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("vote", "ok", time.Millisecond)
		m.AddVotesCast(true, 1)
		m.AddVotesWithdrawn(1)
		m.IncLockTransition("unlocked")
		m.IncStoreRetries()
	})
}
