package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/bufpool"
)

func TestObserveStatsSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveStats(analyzer.Stats{
		BufferPool:       bufpool.Stats{Allocated: 3, Free: 1, Acquired: 2, Max: 4},
		SchedWorkers:     4,
		SchedBoundTasks:  2,
		NumInspectors:    5,
		SampleRate:       48000,
		MeasuredSampRate: 47998.5,
	})

	assert.Equal(t, float64(3), testutil.ToFloat64(m.bufferAllocated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bufferFree))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.bufferAcquired))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.bufferMax))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.schedWorkers))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.schedBoundTasks))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.schedBusyRatio))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.numInspectors))
	assert.Equal(t, float64(48000), testutil.ToFloat64(m.sampleRate))
	assert.Equal(t, 47998.5, testutil.ToFloat64(m.measuredSampRate))
}

func TestObserveStatsZeroWorkersAvoidsDivideByZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveStats(analyzer.Stats{SchedWorkers: 0, SchedBoundTasks: 0})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.schedBusyRatio))
}

func TestObserveChannelsAccumulatesCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveChannels(3)
	m.ObserveChannels(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.channelsDetected))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.channelsTotal))
}

func TestObservePSDFrameIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObservePSDFrame()
	m.ObservePSDFrame()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.psdFramesTotal))
}

func TestObserveBaudSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveBaud(300)
	assert.Equal(t, float64(300), testutil.ToFloat64(m.baudEstimate))
}

func TestObserveSourceInitFailureAndEOSIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveSourceInitFailure()
	m.ObserveEOS()
	m.ObserveEOS()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.sourceInitFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.eosTotal))
}

func TestNewMetricsDoesNotPanicOnFreshRegistryEachCall(t *testing.T) {
	for i := 0; i < 3; i++ {
		reg := prometheus.NewRegistry()
		require.NotNil(t, NewMetrics(reg))
	}
}
