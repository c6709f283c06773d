package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveToggle("like", "on", true, 5*time.Millisecond)
	m.ObserveToggle("like", "on", true, 5*time.Millisecond)
	m.Conflict("like")
	m.BroadcastFailure("target_update")
	m.BroadcastDropped()
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.CounterDrift("follow")
	m.CacheLookup("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toggles.WithLabelValues("like", "on", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastFailures.WithLabelValues("target_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.liveSubscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.counterDrift.WithLabelValues("follow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveToggle("like", "on", true, time.Millisecond)
		m.ToggleError("like", "conflict")
		m.Conflict("like")
		m.BroadcastPublished("notification")
		m.BroadcastFailure("enqueue")
		m.BroadcastDropped()
		m.SubscriberAdded()
		m.SubscriberRemoved()
		m.CounterDrift("like")
		m.CacheLookup("miss")
	})
}
