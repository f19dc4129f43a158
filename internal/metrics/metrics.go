package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clockwork"

// Metrics holds the run counters. They are observability only; the run
// summary is built from per-entity results, never from these.
type Metrics struct {
	registry *prometheus.Registry

	advances        *prometheus.CounterVec
	advanceRetries  *prometheus.CounterVec
	monotonicBumps  prometheus.Counter
	advanceDuration prometheus.Histogram
	dunningRounds   *prometheus.CounterVec
	invoices        *prometheus.CounterVec
	entities        *prometheus.CounterVec
}

// NewMetrics builds a private registry so repeated runs in one process
// (and parallel tests) never collide on the default registerer.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		advances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "clock",
				Name:      "advances_total",
				Help:      "Clock advances by outcome",
			},
			[]string{"outcome"},
		),
		advanceRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "clock",
				Name:      "advance_retries_total",
				Help:      "Advance requests retried, by error kind",
			},
			[]string{"kind"},
		),
		monotonicBumps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "clock",
				Name:      "monotonic_bumps_total",
				Help:      "Advance targets raised to current frozen time plus one second",
			},
		),
		advanceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "clock",
				Name:      "advance_duration_seconds",
				Help:      "Wall time from advance request to settled clock",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
			},
		),
		dunningRounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dunning",
				Name:      "rounds_total",
				Help:      "Dunning rounds by step taken",
			},
			[]string{"step"},
		),
		invoices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "invoices_total",
				Help:      "Invoices touched by reconciliation, by result",
			},
			[]string{"result"},
		),
		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scenario",
				Name:      "entities_total",
				Help:      "Entities processed by trajectory and final state",
			},
			[]string{"trajectory", "state"},
		),
	}

	m.registry.MustRegister(
		m.advances,
		m.advanceRetries,
		m.monotonicBumps,
		m.advanceDuration,
		m.dunningRounds,
		m.invoices,
		m.entities,
	)
	return m
}

// Registry exposes the underlying registry for export and tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AdvanceCompleted(outcome string, seconds float64) {
	m.advances.WithLabelValues(outcome).Inc()
	m.advanceDuration.Observe(seconds)
}

func (m *Metrics) AdvanceRetried(kind string) {
	m.advanceRetries.WithLabelValues(kind).Inc()
}

func (m *Metrics) MonotonicBump() {
	m.monotonicBumps.Inc()
}

func (m *Metrics) DunningRound(step string) {
	m.dunningRounds.WithLabelValues(step).Inc()
}

func (m *Metrics) InvoicesReconciled(paid, unpaid, finalized int) {
	m.invoices.WithLabelValues("paid").Add(float64(paid))
	m.invoices.WithLabelValues("unpaid").Add(float64(unpaid))
	m.invoices.WithLabelValues("finalized").Add(float64(finalized))
}

func (m *Metrics) EntityFinished(trajectory, state string) {
	m.entities.WithLabelValues(trajectory, state).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
