package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interaction"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	toggles            *prometheus.CounterVec
	toggleErrors       *prometheus.CounterVec
	toggleDuration     *prometheus.HistogramVec
	conflicts          *prometheus.CounterVec
	broadcastPublished *prometheus.CounterVec
	broadcastFailures  *prometheus.CounterVec
	broadcastDropped   prometheus.Counter
	liveSubscribers    prometheus.Gauge
	counterDrift       *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		toggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggles_total",
			Help:      "Committed toggles by kind, resulting state and whether membership changed.",
		}, []string{"kind", "state", "changed"}),
		toggleErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_errors_total",
			Help:      "Failed toggles by kind and reason.",
		}, []string{"kind", "reason"}),
		toggleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "toggle_duration_seconds",
			Help:      "Toggle latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_conflicts_total",
			Help:      "Toggle attempts discarded because of a concurrent writer.",
		}, []string{"kind"}),
		broadcastPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_published_total",
			Help:      "Events handed to the pub/sub transport.",
		}, []string{"type"}),
		broadcastFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Fan-out failures by stage.",
		}, []string{"stage"}),
		broadcastDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Events dropped because a queue or subscriber was full.",
		}),
		liveSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribers",
			Help:      "Connected websocket clients and in-process streams.",
		}),
		counterDrift: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_drift_total",
			Help:      "Counters found to differ from their membership count.",
		}, []string{"kind"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Counter cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveToggle(kind, state string, changed bool, d time.Duration) {
	if m == nil {
		return
	}
	c := "false"
	if changed {
		c = "true"
	}
	m.toggles.WithLabelValues(kind, state, c).Inc()
	m.toggleDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ToggleError(kind, reason string) {
	if m == nil {
		return
	}
	m.toggleErrors.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) Conflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) BroadcastPublished(eventType string) {
	if m == nil {
		return
	}
	m.broadcastPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) BroadcastFailure(stage string) {
	if m == nil {
		return
	}
	m.broadcastFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) BroadcastDropped() {
	if m == nil {
		return
	}
	m.broadcastDropped.Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.liveSubscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.liveSubscribers.Dec()
}

func (m *Metrics) CounterDrift(kind string) {
	if m == nil {
		return
	}
	m.counterDrift.WithLabelValues(kind).Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
