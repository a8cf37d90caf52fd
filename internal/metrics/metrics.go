// Package metrics holds the Prometheus collectors of the claim store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "claimstore"

// Ingestion outcomes
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

var (
	// ingestions counts candidate ingestions.
	// Labels: outcome (created, duplicate, invalid, failed)
	ingestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "ingestions_total",
		Help:      "Candidate ingestions by outcome",
	}, []string{"outcome"})

	// ingestLatency measures one ingestion transaction end to end.
	ingestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "ingest_duration_seconds",
		Help:      "Time to validate, detect, persist and publish one entry",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	})

	// relationships counts relationship edges written.
	// Labels: kind (confirms, contradicts, extends, updates), origin (detected, attached)
	relationships = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relate",
		Name:      "relationships_total",
		Help:      "Relationship edges written by kind and origin",
	}, []string{"kind", "origin"})

	// entries tracks the number of committed entries.
	entries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "entries",
		Help:      "Committed entries in the current snapshot",
	})

	// rebuildDuration measures index rebuilds.
	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "rebuild_duration_seconds",
		Help:      "Time to rebuild every derived index",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	// inconsistencies counts verification failures.
	inconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "inconsistencies_total",
		Help:      "Verifications that found derived indices out of step with entries",
	})

	// queries counts query engine calls.
	// Labels: op (find, relationships, evolution, topics, speakers), cache (hit, miss)
	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Query engine calls by operation and cache result",
	}, []string{"op", "cache"})

	// httpRequests counts API requests.
	// Labels: route, code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP API requests by route pattern and status code",
	}, []string{"route", "code"})
)

// RecordIngestion records one ingestion outcome and its duration
func RecordIngestion(outcome string, durationSec float64) {
	ingestions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCreated {
		ingestLatency.Observe(durationSec)
	}
}

// RecordRelationship records one written edge
func RecordRelationship(kind, origin string) {
	relationships.WithLabelValues(kind, origin).Inc()
}

// SetEntries sets the committed entry gauge
func SetEntries(n int) {
	entries.Set(float64(n))
}

// RecordRebuild records a completed rebuild
func RecordRebuild(durationSec float64) {
	rebuildDuration.Observe(durationSec)
}

// RecordInconsistency records a failed verification
func RecordInconsistency() {
	inconsistencies.Inc()
}

// RecordQuery records a query engine call
func RecordQuery(op string, cacheHit bool) {
	result := "miss"
	if cacheHit {
		result = "hit"
	}
	queries.WithLabelValues(op, result).Inc()
}

// RecordHTTPRequest records one API request
func RecordHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
