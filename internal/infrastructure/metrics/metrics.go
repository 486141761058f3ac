// Package metrics provides Prometheus collectors for pipeline runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"HotspotLite/internal/ports"
)

// Metric names as constants for consistency.
const (
	MetricCandidatesTotal = "hotspot_candidates_total"
	MetricFallbackTotal   = "hotspot_fallback_classifications_total"
	MetricFetchTotal      = "hotspot_source_fetches_total"
	MetricFetchedItems    = "hotspot_source_fetched_items"
	MetricRunsTotal       = "hotspot_pipeline_runs_total"
	MetricRunDuration     = "hotspot_pipeline_run_duration_seconds"
)

// Candidate outcomes used as label values.
const (
	OutcomeProcessed = "processed"
	OutcomeInserted  = "inserted"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
)

// Pipeline contains Prometheus metrics for ingestion runs.
// All operations are thread-safe.
type Pipeline struct {
	candidates   *prometheus.CounterVec
	fallback     *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	fetchedItems *prometheus.GaugeVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

var _ ports.PipelineMetrics = (*Pipeline)(nil)

// NewPipeline creates the collectors. They are not registered; call Register.
func NewPipeline() *Pipeline {
	return &Pipeline{
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCandidatesTotal,
				Help: "Candidate records seen by the upsert engine by outcome",
			},
			[]string{"outcome"},
		),
		fallback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFallbackTotal,
				Help: "External fallback classification attempts by outcome",
			},
			[]string{"outcome"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFetchTotal,
				Help: "Feed fetches by source and success",
			},
			[]string{"source", "ok"},
		),
		fetchedItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricFetchedItems,
				Help: "Candidates returned by the last fetch of each source",
			},
			[]string{"source"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRunsTotal,
				Help: "Pipeline runs by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRunDuration,
				Help:    "Duration of the sequential part of a pipeline run",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Pipeline) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Pipeline) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.candidates,
		m.fallback,
		m.fetches,
		m.fetchedItems,
		m.runs,
		m.runDuration,
	}
}

// ObserveUpsert records a batch summary.
func (m *Pipeline) ObserveUpsert(processed, inserted, dropped, failed int) {
	m.candidates.WithLabelValues(OutcomeProcessed).Add(float64(processed))
	m.candidates.WithLabelValues(OutcomeInserted).Add(float64(inserted))
	m.candidates.WithLabelValues(OutcomeDropped).Add(float64(dropped))
	m.candidates.WithLabelValues(OutcomeFailed).Add(float64(failed))
}

// ObserveFallback counts fallback outcomes ("classified" or "unavailable").
func (m *Pipeline) ObserveFallback(outcome string) {
	m.fallback.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one source fetch.
func (m *Pipeline) ObserveFetch(sourceID string, ok bool, count int) {
	m.fetches.WithLabelValues(sourceID, strconv.FormatBool(ok)).Inc()
	if ok {
		m.fetchedItems.WithLabelValues(sourceID).Set(float64(count))
	}
}

// ObserveRun records a finished run.
func (m *Pipeline) ObserveRun(status string, elapsed time.Duration) {
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}
