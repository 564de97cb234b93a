// Package telemetry exports the Local Analyzer's output traffic and
// internal occupancy counters to Prometheus and/or MQTT (module M,
// SPEC_FULL.md). Both sinks are read-only consumers: they poll
// Analyzer.Stats() and drain Analyzer.Out(), never touching the
// analyzer's own locks or internal state directly. Grounded on the
// teacher's prometheus.go (PrometheusMetrics, one GaugeVec per
// measurement) and mqtt_publisher.go (MQTTPublisher, MetricPayload).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
)

// Metrics holds the Prometheus collectors this package registers,
// mirroring the teacher's PrometheusMetrics: one field per measurement,
// grouped by subsystem.
type Metrics struct {
	bufferAllocated prometheus.Gauge
	bufferFree      prometheus.Gauge
	bufferAcquired  prometheus.Gauge
	bufferMax       prometheus.Gauge

	schedWorkers    prometheus.Gauge
	schedBoundTasks prometheus.Gauge
	schedBusyRatio  prometheus.Gauge

	numInspectors    prometheus.Gauge
	sampleRate       prometheus.Gauge
	measuredSampRate prometheus.Gauge

	channelsDetected prometheus.Gauge
	channelsTotal    prometheus.Counter
	psdFramesTotal   prometheus.Counter
	baudEstimate     prometheus.Gauge

	sourceInitFailures prometheus.Counter
	eosTotal           prometheus.Counter
}

// NewMetrics constructs and registers every collector against reg (use
// prometheus.DefaultRegisterer in production; tests pass a fresh
// prometheus.NewRegistry() so repeated calls don't collide).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bufferAllocated: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_bufferpool_allocated",
			Help: "Sample buffers currently allocated by the analyzer's read buffer pool.",
		}),
		bufferFree: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_bufferpool_free",
			Help: "Sample buffers currently idle in the analyzer's read buffer pool.",
		}),
		bufferAcquired: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_bufferpool_acquired",
			Help: "Sample buffers currently checked out from the analyzer's read buffer pool.",
		}),
		bufferMax: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_bufferpool_max",
			Help: "Configured maximum outstanding buffers for the analyzer's read buffer pool.",
		}),
		schedWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_scheduler_workers",
			Help: "Number of inspector scheduler worker goroutines.",
		}),
		schedBoundTasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_scheduler_bound_tasks",
			Help: "Number of inspector handles currently bound to a scheduler worker.",
		}),
		schedBusyRatio: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_scheduler_busy_ratio",
			Help: "Bound inspector tasks divided by scheduler worker count; an approximation of per-worker load, not a measured duty cycle.",
		}),
		numInspectors: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_inspectors_open",
			Help: "Number of open inspector handles.",
		}),
		sampleRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_sample_rate_hz",
			Help: "Detector's configured (nominal) sample rate.",
		}),
		measuredSampRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_measured_sample_rate_hz",
			Help: "Exponentially smoothed, measured realized sample rate.",
		}),
		channelsDetected: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_channels_detected",
			Help: "Number of channels reported in the most recent CHANNEL message.",
		}),
		channelsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sdranalyzer_channels_detected_total",
			Help: "Running total of channels reported across all CHANNEL messages.",
		}),
		psdFramesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sdranalyzer_psd_frames_total",
			Help: "Running total of PSD frames emitted.",
		}),
		baudEstimate: f.NewGauge(prometheus.GaugeOpts{
			Name: "sdranalyzer_baud_estimate",
			Help: "Most recent autocorrelation-mode baud estimate.",
		}),
		sourceInitFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "sdranalyzer_source_init_failures_total",
			Help: "Running total of failed SOURCE_INIT notifications.",
		}),
		eosTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sdranalyzer_eos_total",
			Help: "Running total of end-of-stream notifications observed.",
		}),
	}
}

// ObserveStats updates the occupancy gauges from a Stats snapshot.
func (m *Metrics) ObserveStats(s analyzer.Stats) {
	m.bufferAllocated.Set(float64(s.BufferPool.Allocated))
	m.bufferFree.Set(float64(s.BufferPool.Free))
	m.bufferAcquired.Set(float64(s.BufferPool.Acquired))
	m.bufferMax.Set(float64(s.BufferPool.Max))

	m.schedWorkers.Set(float64(s.SchedWorkers))
	m.schedBoundTasks.Set(float64(s.SchedBoundTasks))
	if s.SchedWorkers > 0 {
		m.schedBusyRatio.Set(float64(s.SchedBoundTasks) / float64(s.SchedWorkers))
	} else {
		m.schedBusyRatio.Set(0)
	}

	m.numInspectors.Set(float64(s.NumInspectors))
	m.sampleRate.Set(s.SampleRate)
	m.measuredSampRate.Set(s.MeasuredSampRate)
}

// ObserveChannels records one CHANNEL output message.
func (m *Metrics) ObserveChannels(n int) {
	m.channelsDetected.Set(float64(n))
	m.channelsTotal.Add(float64(n))
}

// ObservePSDFrame records one PSD output message.
func (m *Metrics) ObservePSDFrame() {
	m.psdFramesTotal.Inc()
}

// ObserveBaud records one autocorrelation-mode baud estimate.
func (m *Metrics) ObserveBaud(baud float64) {
	m.baudEstimate.Set(baud)
}

// ObserveSourceInitFailure records a failed SOURCE_INIT.
func (m *Metrics) ObserveSourceInitFailure() {
	m.sourceInitFailures.Inc()
}

// ObserveEOS records an end-of-stream notification.
func (m *Metrics) ObserveEOS() {
	m.eosTotal.Inc()
}
