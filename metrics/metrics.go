// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes Prometheus counters for poll actions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the poll service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Actions by name and error class ("ok" on success)
	Operations *prometheus.CounterVec

	// End-to-end action latency by name
	OperationLatency *prometheus.HistogramVec

	// Individual choice votes by voter kind ("member", "guest")
	VotesCast      *prometheus.CounterVec
	VotesWithdrawn prometheus.Counter

	// Lock toggles by resulting state
	LockTransitions *prometheus.CounterVec

	// Transaction retries after the store reported itself unavailable
	StoreRetries prometheus.Counter
}

// New creates a Metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topic_polls_operations_total",
			Help: "Poll actions by action and outcome class",
		}, []string{"action", "outcome"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topic_polls_operation_duration_seconds",
			Help:    "Duration of poll actions including store retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"action"}),

		VotesCast: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topic_polls_votes_cast_total",
			Help: "Choice votes cast by voter kind",
		}, []string{"voter"}),

		VotesWithdrawn: f.NewCounter(prometheus.CounterOpts{
			Name: "topic_polls_votes_withdrawn_total",
			Help: "Choice votes withdrawn, including those replaced by a re-vote",
		}),

		LockTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topic_polls_lock_transitions_total",
			Help: "Voting lock toggles by resulting state",
		}, []string{"state"}),

		StoreRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "topic_polls_store_retries_total",
			Help: "Transactions retried after the poll store was unavailable",
		}),
	}
}

// ObserveOperation records one finished action.
func (m *Metrics) ObserveOperation(action, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(action, outcome).Inc()
		m.OperationLatency.WithLabelValues(action).Observe(d.Seconds())
	}
}

// AddVotesCast records n choice votes by one voter.
func (m *Metrics) AddVotesCast(guest bool, n int) {
	if m == nil {
		return
	}
	voter := "member"
	if guest {
		voter = "guest"
	}
	m.VotesCast.WithLabelValues(voter).Add(float64(n))
}

func (m *Metrics) AddVotesWithdrawn(n int) {
	if m != nil {
		m.VotesWithdrawn.Add(float64(n))
	}
}

func (m *Metrics) IncLockTransition(state string) {
	if m != nil {
		m.LockTransitions.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncStoreRetries() {
	if m != nil {
		m.StoreRetries.Inc()
	}
}
