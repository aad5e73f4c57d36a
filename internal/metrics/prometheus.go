package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SlotMetrics contains Prometheus metrics for slot analytics and commits
type SlotMetrics struct {
	registry *prometheus.Registry

	// Analytics events
	slotEventsTotal *prometheus.CounterVec
	slotDuration    *prometheus.HistogramVec
	droppedEvents   *prometheus.CounterVec

	// Commit pipeline
	commitsTotal   *prometheus.CounterVec
	committedSlots prometheus.Counter
	purgedEvents   prometheus.Counter
	commitDuration prometheus.Histogram
}

// NewSlotMetrics creates and registers new slot metrics
func NewSlotMetrics(registry *prometheus.Registry) (*SlotMetrics, error) {
	m := &SlotMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SlotMetrics) initMetrics() {
	m.slotEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwise_slot_events_total",
			Help: "Total number of time slot analytics events",
		},
		[]string{"event", "category"},
	)

	m.slotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotwise_slot_duration_seconds",
			Help:    "Duration of time slots at the moment the event was logged",
			Buckets: []float64{60, 300, 900, 1800, 3600, 2 * 3600, 4 * 3600, 8 * 3600, 24 * 3600},
		},
		[]string{"event"},
	)

	m.droppedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwise_slot_events_dropped_total",
			Help: "Total number of analytics events dropped because the queue was full",
		},
		[]string{"event"},
	)

	m.commitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwise_commits_total",
			Help: "Total number of batch commits",
		},
		[]string{"status"}, // success, invalid, store_error
	)

	m.committedSlots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotwise_committed_slots_total",
			Help: "Total number of slots persisted by batch commits",
		},
	)

	m.purgedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotwise_purged_track_events_total",
			Help: "Total number of raw track events purged after successful commits",
		},
	)

	m.commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotwise_commit_duration_seconds",
			Help:    "Time taken to commit a batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
}

// Describe implements the Collector interface
func (m *SlotMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.slotEventsTotal.Describe(ch)
	m.slotDuration.Describe(ch)
	m.droppedEvents.Describe(ch)
	m.commitsTotal.Describe(ch)
	m.committedSlots.Describe(ch)
	m.purgedEvents.Describe(ch)
	m.commitDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *SlotMetrics) Collect(ch chan<- prometheus.Metric) {
	m.slotEventsTotal.Collect(ch)
	m.slotDuration.Collect(ch)
	m.droppedEvents.Collect(ch)
	m.commitsTotal.Collect(ch)
	m.committedSlots.Collect(ch)
	m.purgedEvents.Collect(ch)
	m.commitDuration.Collect(ch)
}

// Log implements Sink
func (m *SlotMetrics) Log(e Event) {
	m.slotEventsTotal.WithLabelValues(string(e.Kind), string(e.Category)).Inc()
	if e.Duration != nil {
		m.slotDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
	}
}

// RecordDropped records an analytics event that never reached its sinks
func (m *SlotMetrics) RecordDropped(e Event) {
	m.droppedEvents.WithLabelValues(string(e.Kind)).Inc()
}

// RecordCommit records the outcome of one batch commit
func (m *SlotMetrics) RecordCommit(status string, slots, purged int, seconds float64) {
	m.commitsTotal.WithLabelValues(status).Inc()
	m.committedSlots.Add(float64(slots))
	m.purgedEvents.Add(float64(purged))
	m.commitDuration.Observe(seconds)
}
