// Package metrics exports verifier counters to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ModeGreedy = "greedy"
	ModeRandom = "random"
)

// Recorder owns the verifier's collectors. A nil *Recorder records nothing.
type Recorder struct {
	batches        prometheus.Counter
	requests       *prometheus.CounterVec
	draftTokens    *prometheus.CounterVec
	acceptedTokens *prometheus.CounterVec
	recovered      *prometheus.CounterVec
	bonusTokens    *prometheus.CounterVec
	capacityErrors prometheus.Counter
	batchDuration  prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		batches: f.NewCounter(prometheus.CounterOpts{
			Name: "specdec_batches_total",
			Help: "Total number of verified batches",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specdec_requests_total",
			Help: "Total number of verified requests",
		}, []string{"mode"}),
		draftTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specdec_draft_tokens_total",
			Help: "Total number of draft tokens submitted for verification",
		}, []string{"mode"}),
		acceptedTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specdec_accepted_tokens_total",
			Help: "Total number of draft tokens accepted",
		}, []string{"mode"}),
		recovered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specdec_recovered_tokens_total",
			Help: "Total number of replacement tokens written on rejection",
		}, []string{"mode"}),
		bonusTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "specdec_bonus_tokens_total",
			Help: "Total number of bonus tokens appended after full acceptance",
		}, []string{"mode"}),
		capacityErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "specdec_capacity_errors_total",
			Help: "Total number of batches refused for exceeding staging capacity",
		}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "specdec_batch_duration_seconds",
			Help:    "Duration of a full verification call",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
	}
}

// Row is the outcome of one verified request.
type Row struct {
	Mode     string
	Drafted  int
	Accepted int
	Rejected bool
	Bonus    bool
}

// ObserveBatch records one completed call.
func (r *Recorder) ObserveBatch(rows []Row, d time.Duration) {
	if r == nil {
		return
	}
	r.batches.Inc()
	r.batchDuration.Observe(d.Seconds())
	for _, row := range rows {
		r.requests.WithLabelValues(row.Mode).Inc()
		r.draftTokens.WithLabelValues(row.Mode).Add(float64(row.Drafted))
		r.acceptedTokens.WithLabelValues(row.Mode).Add(float64(row.Accepted))
		if row.Rejected {
			r.recovered.WithLabelValues(row.Mode).Inc()
		}
		if row.Bonus {
			r.bonusTokens.WithLabelValues(row.Mode).Inc()
		}
	}
}

// CapacityExceeded records a refused batch.
func (r *Recorder) CapacityExceeded() {
	if r == nil {
		return
	}
	r.capacityErrors.Inc()
}
