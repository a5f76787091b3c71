package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CVEsIngested counts CVE records stored by the ingestion pipeline
	CVEsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zerotrace",
			Name:      "cves_ingested_total",
			Help:      "Total number of CVE records stored",
		},
	)

	// IngestErrors counts rejected or unstorable CVE records
	IngestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zerotrace",
			Name:      "ingest_errors_total",
			Help:      "Total number of CVE records that failed ingestion",
		},
		[]string{"kind"},
	)

	// ScansTotal counts scan runs by result
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zerotrace",
			Name:      "scans_total",
			Help:      "Total number of asset scans",
		},
		[]string{"result"},
	)

	// MatchesFound counts matches produced by scans, by severity
	MatchesFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zerotrace",
			Name:      "matches_found_total",
			Help:      "Total number of asset/CVE matches found",
		},
		[]string{"severity"},
	)

	// ActionPlans counts action plan requests by outcome
	ActionPlans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zerotrace",
			Name:      "action_plans_total",
			Help:      "Total number of action plan requests",
		},
		[]string{"outcome"},
	)

	// GenerationDuration observes the latency of generation calls
	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zerotrace",
			Name:      "generation_duration_seconds",
			Help:      "Latency of action plan generation calls",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry
// This function is idempotent and can be called multiple times safely
func InitMetrics() {
	once.Do(func() {
		// Register metrics, ignoring errors if already registered
		prometheus.DefaultRegisterer.Register(CVEsIngested)
		prometheus.DefaultRegisterer.Register(IngestErrors)
		prometheus.DefaultRegisterer.Register(ScansTotal)
		prometheus.DefaultRegisterer.Register(MatchesFound)
		prometheus.DefaultRegisterer.Register(ActionPlans)
		prometheus.DefaultRegisterer.Register(GenerationDuration)
	})
}
