package mcshell

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the orchestrator reports
// to. The zero value is unusable; construct with NewMetrics and
// register the result with a prometheus.Registerer (or
// prometheus.DefaultRegisterer) before wiring it into an Orchestrator
// via WithMetrics.
type Metrics struct {
	pipelinesTotal *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	bufferBytes    prometheus.Histogram
	forEachFanOut  prometheus.Histogram
}

// NewMetrics constructs a Metrics instance. Callers register it with
// reg themselves (prometheus.MustRegister(m.Collectors()...)) so tests
// can use a throwaway prometheus.NewRegistry() instead of polluting
// the global default.
func NewMetrics() *Metrics {
	return &Metrics{
		pipelinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcshell_pipelines_total",
			Help: "Pipeline invocations by terminal status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcshell_stage_duration_seconds",
			Help:    "Per-stage execution duration by stage kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		bufferBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcshell_buffer_capture_bytes",
			Help:    "Bytes captured into a save_to buffer per stage.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		forEachFanOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcshell_foreach_fanout_items",
			Help:    "Number of items a for_each stage fanned out to.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// Collectors returns every collector so callers can register them in
// one call: reg.MustRegister(m.Collectors()...).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.pipelinesTotal, m.stageDuration, m.bufferBytes, m.forEachFanOut}
}

func (m *Metrics) observePipeline(status Status) {
	if m == nil {
		return
	}
	m.pipelinesTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeStage(diag StageDiagnostic) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(diag.Kind)).Observe(diag.Duration.Seconds())
}

func (m *Metrics) observeBuffer(bytes int) {
	if m == nil {
		return
	}
	m.bufferBytes.Observe(float64(bytes))
}

func (m *Metrics) observeForEachFanOut(items int) {
	if m == nil {
		return
	}
	m.forEachFanOut.Observe(float64(items))
}
