// Package metrics exposes Prometheus collectors for the tracking pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects tracking outcome, guard and reaction metrics. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	events           *prometheus.CounterVec
	guardContention  *prometheus.CounterVec
	reactionFailures *prometheus.CounterVec
	reactionDuration *prometheus.SummaryVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_events_total",
			Help: "Tracking requests by event type and outcome.",
		},
		[]string{"event", "outcome"},
	)

	guardContention := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_guard_contention_total",
			Help: "Requests that could not take the idempotency lock.",
		},
		[]string{"event"},
	)

	reactionFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_reaction_failures_total",
			Help: "Side-effect reactions that returned an error or panicked.",
		},
		[]string{"event", "reaction"},
	)

	reactionDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "tracking_reaction_duration_seconds",
			Help:       "Time spent in each side-effect reaction.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			MaxAge:     5 * time.Minute,
		},
		[]string{"event", "reaction"},
	)

	reg.MustRegister(events, guardContention, reactionFailures, reactionDuration)

	return &Recorder{
		events:           events,
		guardContention:  guardContention,
		reactionFailures: reactionFailures,
		reactionDuration: reactionDuration,
	}
}

// Event counts one finished tracking request.
func (r *Recorder) Event(event, outcome string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(event, outcome).Inc()
}

// Contended counts a lost idempotency lock race.
func (r *Recorder) Contended(event string) {
	if r == nil {
		return
	}
	r.guardContention.WithLabelValues(event).Inc()
}

// Reaction records the duration of one reaction run and whether it failed.
func (r *Recorder) Reaction(event, reaction string, took time.Duration, failed bool) {
	if r == nil {
		return
	}
	r.reactionDuration.WithLabelValues(event, reaction).Observe(took.Seconds())
	if failed {
		r.reactionFailures.WithLabelValues(event, reaction).Inc()
	}
}
