package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels of the samples counter.
const (
	OutcomeFeasible     = "feasible"
	OutcomeInfeasible   = "infeasible"
	OutcomeNotConverged = "not_converged"
	OutcomeSolverError  = "solver_error"
	OutcomeDefective    = "defective_profile"
)

// Metrics holds the collectors of a flexibility study. Each instance owns its registry so tests and repeated studies
// in one process do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	samples          *prometheus.CounterVec
	powerFlowSeconds prometheus.Histogram
	samplingSeconds  prometheus.Gauge
	sweepSeconds     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexarea_samples_total",
			Help: "Monte Carlo samples processed, by outcome.",
		}, []string{"outcome"}),
		powerFlowSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flexarea_power_flow_seconds",
			Help:    "Wall clock time of single power flow solves.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		samplingSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flexarea_sampling_seconds",
			Help: "Wall clock time spent creating the last batch of profiles.",
		}),
		sweepSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flexarea_sweep_seconds",
			Help: "Wall clock time of the last Monte Carlo sweep.",
		}),
	}
	m.Registry.MustRegister(m.samples, m.powerFlowSeconds, m.samplingSeconds, m.sweepSeconds)
	return m
}

// Sample counts one processed sample with the given outcome. Safe to call on a nil Metrics.
func (m *Metrics) Sample(outcome string) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(outcome).Inc()
}

// PowerFlow observes the duration of one solve.
func (m *Metrics) PowerFlow(d time.Duration) {
	if m == nil {
		return
	}
	m.powerFlowSeconds.Observe(d.Seconds())
}

func (m *Metrics) Sampling(d time.Duration) {
	if m == nil {
		return
	}
	m.samplingSeconds.Set(d.Seconds())
}

func (m *Metrics) Sweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepSeconds.Set(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
