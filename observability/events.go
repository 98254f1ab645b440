package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	indexed   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "satvault",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed ledger events segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "satvault",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Events not delivered to a slow stream subscriber.",
			}, []string{"type"}),
			indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "satvault",
				Subsystem: "events",
				Name:      "indexed_total",
				Help:      "Events persisted by the history indexer segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped, eventRegistry.indexed)
	})
	return eventRegistry
}

func label(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

// RecordPublished increments the published counter for the event type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(label(eventType)).Inc()
}

// RecordDropped increments the dropped counter for the event type.
func (m *eventMetrics) RecordDropped(eventType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(label(eventType)).Inc()
}

// RecordIndexed increments the indexer counter. Outcome is "stored",
// "duplicate" or "error".
func (m *eventMetrics) RecordIndexed(outcome string) {
	if m == nil {
		return
	}
	m.indexed.WithLabelValues(label(outcome)).Inc()
}
