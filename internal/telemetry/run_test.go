package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/detector"
)

func newTestSink() *Sink {
	return &Sink{metrics: NewMetrics(prometheus.NewRegistry())}
}

func TestDispatchSourceInitFailureIncrementsCounter(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindSourceInit, analyzer.SourceInitPayload{Status: analyzer.SourceInitFailed})
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.sourceInitFailures))
}

func TestDispatchSourceInitOKDoesNotIncrementCounter(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindSourceInit, analyzer.SourceInitPayload{Status: analyzer.SourceInitOK})
	assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.sourceInitFailures))
}

func TestDispatchOutEOSIncrementsCounter(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindOutEOS, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.eosTotal))
}

func TestDispatchOutChannelUpdatesGaugeAndCounter(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindOutChannel, analyzer.ChannelListPayload{
		Channels: []detector.Channel{{Fc: 1000, BW: 200}, {Fc: 2000, BW: 300}},
	})
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.channelsDetected))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.channelsTotal))
}

func TestDispatchPSDIncrementsFrameCounter(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindPSD, analyzer.PSDPayload{})
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.psdFramesTotal))
}

func TestDispatchOutBaudSetsGauge(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindOutBaud, analyzer.BaudPayload{Estimate: &detector.BaudEstimate{Baud: 1200}})
	assert.Equal(t, float64(1200), testutil.ToFloat64(s.metrics.baudEstimate))
}

func TestDispatchOutBaudNilEstimateIsIgnored(t *testing.T) {
	s := newTestSink()
	s.dispatch(analyzer.KindOutBaud, analyzer.BaudPayload{Estimate: nil})
	assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.baudEstimate))
}

func TestDispatchUnknownKindIsIgnored(t *testing.T) {
	s := newTestSink()
	assert.NotPanics(t, func() {
		s.dispatch(9999, nil)
	})
}
