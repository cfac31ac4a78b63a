// Package metrics holds the pipeline counters and histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Anchor results.
const (
	ResultConfirmed  = "confirmed"
	ResultReinstated = "reinstated"
	ResultTimeout    = "timeout"
	ResultFailed     = "failed"
)

// Pipeline records certification pipeline activity. A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	anchorTotal       *prometheus.CounterVec
	anchorDuration    prometheus.Histogram
	integrityMismatch *prometheus.CounterVec
	transitions       *prometheus.CounterVec
}

// NewPipeline creates and registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		anchorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thesis_anchor_total",
				Help: "Ledger anchor attempts by result.",
			},
			[]string{"result"},
		),
		anchorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thesis_anchor_duration_seconds",
			Help:    "Time from submission to confirmed anchor.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		integrityMismatch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thesis_integrity_mismatch_total",
				Help: "Certificates whose local record disagrees with the ledger, by field.",
			},
			[]string{"field"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thesis_transitions_total",
				Help: "Lifecycle transitions by target state.",
			},
			[]string{"to"},
		),
	}

	for _, c := range []prometheus.Collector{p.anchorTotal, p.anchorDuration, p.integrityMismatch, p.transitions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) Anchor(result string, took time.Duration) {
	if p == nil {
		return
	}
	p.anchorTotal.WithLabelValues(result).Inc()
	if result == ResultConfirmed {
		p.anchorDuration.Observe(took.Seconds())
	}
}

func (p *Pipeline) Mismatch(fields []string) {
	if p == nil {
		return
	}
	for _, f := range fields {
		p.integrityMismatch.WithLabelValues(f).Inc()
	}
}

func (p *Pipeline) Transition(to string) {
	if p == nil {
		return
	}
	p.transitions.WithLabelValues(to).Inc()
}
