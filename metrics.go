package lightcurve

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of the simulations. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runs        *prometheus.CounterVec
	steps       *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	samples     prometheus.Counter
	phase       *prometheus.HistogramVec
	drift       prometheus.Gauge
}

// NewMetrics registers the simulation collectors on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightcurve_runs_total",
			Help: "Number of simulations by outcome",
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightcurve_integration_steps_total",
			Help: "Accepted integration steps",
		}, []string{"phase"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightcurve_integration_rejected_steps_total",
			Help: "Rejected integration steps",
		}, []string{"phase"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightcurve_derivative_evaluations_total",
			Help: "Evaluations of the equations of motion",
		}, []string{"phase"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightcurve_samples_total",
			Help: "Lightcurve samples computed",
		}),
		phase: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lightcurve_phase_duration_seconds",
			Help:    "Wall clock duration of each simulation phase",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"phase"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lightcurve_quaternion_norm_drift",
			Help: "Largest deviation of the quaternion norm from one in the last run",
		}),
	}
	m.Registry.MustRegister(m.runs, m.steps, m.rejected, m.evaluations, m.samples, m.phase, m.drift)
	return m
}

// ObservePhase records the duration of a phase since start.
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.phase.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// ObserveStats records the integration statistics of a phase.
func (m *Metrics) ObserveStats(phase string, s Stats) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(phase).Add(float64(s.Steps))
	m.rejected.WithLabelValues(phase).Add(float64(s.Rejected))
	m.evaluations.WithLabelValues(phase).Add(float64(s.Evaluations))
}

// ObserveSamples records computed lightcurve samples.
func (m *Metrics) ObserveSamples(n int) {
	if m == nil {
		return
	}
	m.samples.Add(float64(n))
}

// ObserveDrift records the quaternion norm drift.
func (m *Metrics) ObserveDrift(drift float64) {
	if m == nil {
		return
	}
	m.drift.Set(drift)
}

// ObserveRun records the outcome of a run.
func (m *Metrics) ObserveRun(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes all the metrics in the prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
