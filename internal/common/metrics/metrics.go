// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SchedulerTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_scheduler_ticks_total",
			Help: "Total number of scheduler fires by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_notifications_emitted_total",
			Help: "Total number of notifications displayed by type code",
		},
		[]string{"type_code"},
	)

	GeneratorAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engagement_generator_attempts",
			Help:    "Attempts consumed per successful candidate generation",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	BudgetFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engagement_budget_fallbacks_total",
			Help: "Budget decisions taken on the local counter after a remote query failure",
		},
	)

	UpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engagement_upstream_failures_total",
			Help: "Swallowed upstream collaborator failures",
		},
		[]string{"collaborator"},
	)
)

// Tick outcomes
const (
	OutcomeEmitted     = "emitted"
	OutcomeBudget      = "budget_exhausted"
	OutcomeNoCandidate = "no_candidate"
	OutcomeThrottled   = "throttled"
)
