package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the ingestion metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetchAttempts  *prometheus.CounterVec
	fetchFallbacks *prometheus.CounterVec
	sourceRecords  *prometheus.CounterVec
	upserts        *prometheus.CounterVec
	passDuration   prometheus.Histogram
	passesTotal    *prometheus.CounterVec
	ticksDropped   prometheus.Counter
	published      *prometheus.CounterVec
	consumed       *prometheus.CounterVec
}

// New creates a recorder on its own registry so tests and binaries never collide
// on the global default one.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		fetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_fetch_attempts_total",
				Help: "HTTP fetch attempts by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),
		fetchFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_fetch_fallbacks_total",
				Help: "Secondary transport attempts after the primary retries were exhausted",
			},
			[]string{"result"},
		),
		sourceRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_source_records_total",
				Help: "Records produced per source, split by live fetch or fixture",
			},
			[]string{"source", "origin"},
		),
		upserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_upserts_total",
				Help: "Market upserts by result",
			},
			[]string{"result"},
		),
		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "metaodds_pass_duration_seconds",
				Help:    "Duration of ingestion passes",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_passes_total",
				Help: "Finished ingestion passes by status",
			},
			[]string{"status"},
		),
		ticksDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "metaodds_scheduler_ticks_dropped_total",
				Help: "Scheduler ticks dropped because a pass was still running",
			},
		),
		published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_snapshots_published_total",
				Help: "Market snapshots written to Kafka by result",
			},
			[]string{"result"},
		),
		consumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaodds_snapshots_consumed_total",
				Help: "Market snapshots read by the mirror by result",
			},
			[]string{"result"},
		),
	}
}

// Gatherer exposes the registry for the /metrics handler.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// RecordFetchAttempt records one HTTP attempt; outcome is "ok" or an error kind.
func (r *Recorder) RecordFetchAttempt(transport, outcome string) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(transport, outcome).Inc()
}

// RecordFallback records the result ("ok" or "failed") of a secondary transport attempt.
func (r *Recorder) RecordFallback(result string) {
	if r == nil {
		return
	}
	r.fetchFallbacks.WithLabelValues(result).Inc()
}

// RecordSourceRecords adds n records for a source and origin (live|fixture).
func (r *Recorder) RecordSourceRecords(source, origin string, n int) {
	if r == nil {
		return
	}
	r.sourceRecords.WithLabelValues(source, origin).Add(float64(n))
}

// RecordUpsert records one market upsert result (inserted|updated|unchanged|failed).
func (r *Recorder) RecordUpsert(result string) {
	if r == nil {
		return
	}
	r.upserts.WithLabelValues(result).Inc()
}

// RecordPass records a finished pass.
func (r *Recorder) RecordPass(status string, seconds float64) {
	if r == nil {
		return
	}
	r.passesTotal.WithLabelValues(status).Inc()
	r.passDuration.Observe(seconds)
}

// RecordTickDropped records a scheduler tick skipped due to overlap.
func (r *Recorder) RecordTickDropped() {
	if r == nil {
		return
	}
	r.ticksDropped.Inc()
}

// RecordPublished adds n snapshots with result "ok" or "failed".
func (r *Recorder) RecordPublished(result string, n int) {
	if r == nil {
		return
	}
	r.published.WithLabelValues(result).Add(float64(n))
}

// RecordConsumed records one mirrored snapshot (ok|decode_error|handler_error).
func (r *Recorder) RecordConsumed(result string) {
	if r == nil {
		return
	}
	r.consumed.WithLabelValues(result).Inc()
}
