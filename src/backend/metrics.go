package backend

import (
	"github.com/prometheus/client_golang/prometheus"

	"rvlower/src/backend/riscv"
)

// Metrics counts lowering decisions of one or more units.
type Metrics struct {
	reg      *prometheus.Registry
	lowered  *prometheus.CounterVec // Operations lowered, by strategy.
	failed   prometheus.Counter     // Functions that failed to lower.
	length   prometheus.Histogram   // Machine instructions per function, including prologue and epilogue.
	spilled  prometheus.Counter     // Callee-saved registers saved by spill frames.
	pressure prometheus.Histogram   // Virtual registers live at once per function after legalization.
}

const namespace = "rvlower"

// NewMetrics returns Metrics registered with a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.lowered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_lowered_total",
		Help:      "Operations lowered, by strategy.",
	}, []string{"strategy"})
	m.failed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "functions_failed_total",
		Help:      "Functions that failed to lower.",
	})
	m.length = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "function_instructions",
		Help:      "Machine instructions per lowered function.",
		Buckets:   prometheus.LinearBuckets(4, 4, 10),
	})
	m.spilled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callee_saved_spills_total",
		Help:      "Callee-saved registers saved by spill frames.",
	})
	m.pressure = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "register_pressure",
		Help:      "Virtual registers live at once per function after legalization.",
		Buckets:   prometheus.LinearBuckets(1, 1, 7),
	})
	m.reg.MustRegister(m.lowered, m.failed, m.length, m.spilled, m.pressure)
	return m
}

// observe records a successfully lowered function with n machine instructions.
func (m *Metrics) observe(fn *riscv.Func, n int) {
	for _, e1 := range fn.Strategies {
		m.lowered.WithLabelValues(e1).Inc()
	}
	m.length.Observe(float64(n))
	m.spilled.Add(float64(len(fn.Frame.Saved())))
	m.pressure.Observe(float64(fn.Pressure))
}

// fail records a function that failed to lower.
func (m *Metrics) fail() {
	m.failed.Inc()
}

// Gatherer returns the registry holding the metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}

// WriteFile writes the metrics in the Prometheus text format to path.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
