package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsTotal    *prometheus.CounterVec
	decisionsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	riskBets       prometheus.Gauge
	riskWagered    prometheus.Gauge
	riskLoss       prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polysentry_events_total",
				Help: "Trade events by ingestion disposition",
			},
			[]string{"disposition"},
		),
		decisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polysentry_decisions_total",
				Help: "Terminal pipeline decisions by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polysentry_errors_total",
				Help: "Collaborator and internal errors by kind",
			},
			[]string{"kind"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polysentry_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		riskBets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "polysentry_risk_bets_placed",
			Help: "Bets reserved against today's ledger",
		}),
		riskWagered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "polysentry_risk_amount_wagered",
			Help: "Amount reserved against today's ledger",
		}),
		riskLoss: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "polysentry_risk_realized_loss",
			Help: "Realized loss recorded against today's ledger",
		}),
	}
}

// RecordEvent records an ingestion disposition (received, invalid, duplicate).
func (r *Recorder) RecordEvent(disposition string) {
	r.eventsTotal.WithLabelValues(disposition).Inc()
}

// RecordDecision records a terminal decision outcome.
func (r *Recorder) RecordDecision(outcome string) {
	r.decisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordStageLatency records pipeline stage latency in seconds.
func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// SetRiskGauges mirrors the live risk ledger into gauges.
func (r *Recorder) SetRiskGauges(bets int, wagered, loss float64) {
	r.riskBets.Set(float64(bets))
	r.riskWagered.Set(wagered)
	r.riskLoss.Set(loss)
}
