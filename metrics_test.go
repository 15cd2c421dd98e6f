package mcshell

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector, labelValue string) float64 {
	t.Helper()
	vec, ok := c.(*prometheus.CounterVec)
	require.True(t, ok)
	m := &dto.Metric{}
	require.NoError(t, vec.WithLabelValues(labelValue).Write(m))
	return m.GetCounter().GetValue()
}

func TestMetricsObservePipelineIncrementsCounter(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.pipelinesTotal))

	m.observePipeline(StatusOK)
	m.observePipeline(StatusOK)
	m.observePipeline(StatusError)

	assert.Equal(t, float64(2), counterValue(t, m.pipelinesTotal, "ok"))
	assert.Equal(t, float64(1), counterValue(t, m.pipelinesTotal, "error"))
}

func TestMetricsObserveStageRecordsDuration(t *testing.T) {
	m := NewMetrics()
	assert.NotPanics(t, func() {
		m.observeStage(StageDiagnostic{Kind: StageCommand, Duration: 5 * time.Millisecond})
	})
}

func TestMetricsObserveBufferAndForEachFanOut(t *testing.T) {
	m := NewMetrics()
	assert.NotPanics(t, func() {
		m.observeBuffer(1024)
		m.observeForEachFanOut(10)
	})
}

func TestMetricsCollectorsRegistersCleanly(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collectorSet(m.Collectors())))
}

// collectorSet adapts a slice of collectors into one Collector so a
// single Register call can exercise every collector NewMetrics builds.
type collectorSet []prometheus.Collector

func (s collectorSet) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range s {
		c.Describe(ch)
	}
}

func (s collectorSet) Collect(ch chan<- prometheus.Metric) {
	for _, c := range s {
		c.Collect(ch)
	}
}

func TestNilMetricsObserveMethodsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observePipeline(StatusOK)
		m.observeStage(StageDiagnostic{})
		m.observeBuffer(1)
		m.observeForEachFanOut(1)
	})
}
