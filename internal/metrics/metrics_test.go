package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Event("open", "recorded")
	m.Event("open", "recorded")
	m.Event("click", "ineligible")
	m.Contended("open")
	m.Reaction("click", "webhook", 3*time.Millisecond, true)
	m.Reaction("click", "webhook", time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("open", "recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("click", "ineligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardContention.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reactionFailures.WithLabelValues("click", "webhook")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var m *Recorder
	assert.NotPanics(t, func() {
		m.Event("open", "recorded")
		m.Contended("click")
		m.Reaction("open", "ab_test", time.Second, true)
	})
}
