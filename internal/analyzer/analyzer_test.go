package analyzer_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/detector"
	"github.com/cwsl/sdranalyzer/internal/inspector"
	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/source"
)

// fakeSource is a minimal, always-ready Source double: every Read call
// fills buf with zero samples and reports a full count until Cancel is
// called, after which it reports EOS. Frequency retunes are recorded
// for the wide-spectrum sweep-coverage test.
type fakeSource struct {
	info source.Info

	mu        sync.Mutex
	cancelled bool
	freqCalls []float64
}

func newFakeSource(info source.Info) *fakeSource {
	return &fakeSource{info: info}
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }

func (f *fakeSource) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
}

func (f *fakeSource) Read(buf []source.Sample) source.ReadResult {
	f.mu.Lock()
	cancelled := f.cancelled
	f.mu.Unlock()
	if cancelled {
		return source.ReadResult{Kind: source.ReadEOS}
	}
	for i := range buf {
		buf[i] = 0
	}
	return source.ReadResult{Kind: source.ReadOK, Count: len(buf)}
}

func (f *fakeSource) GetTime() time.Time { return time.Now() }
func (f *fakeSource) Info() source.Info  { return f.info }

func (f *fakeSource) SetFrequency(hz float64) error {
	f.mu.Lock()
	f.freqCalls = append(f.freqCalls, hz)
	f.mu.Unlock()
	return nil
}
func (f *fakeSource) SetGain(name string, val float64) error { return nil }
func (f *fakeSource) SetAntenna(name string) error            { return nil }
func (f *fakeSource) SetBandwidth(hz float64) error            { return nil }
func (f *fakeSource) SetPPM(ppm float64) error                 { return nil }
func (f *fakeSource) SetDCRemove(enabled bool) error           { return nil }
func (f *fakeSource) SetAGC(enabled bool) error                { return nil }
func (f *fakeSource) Close() error                             { return nil }

func (f *fakeSource) frequenciesCalled() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.freqCalls))
	copy(out, f.freqCalls)
	return out
}

// fakeInspector counts every bulk fed to it by the scheduler.
type fakeInspector struct {
	feeds atomic.Int64
}

func (f *fakeInspector) Feed(data []source.Sample) (any, error) {
	f.feeds.Add(1)
	return nil, nil
}
func (f *fakeInspector) SetConfig(cfg inspector.Config) error { return nil }
func (f *fakeInspector) Close() error                         { return nil }

// waitForKind polls out until a message of the given kind appears,
// discarding anything else (PSD/result/halt-ack traffic the analyzer
// also posts), or fails the test after a generous timeout.
func waitForKind(t *testing.T, out *mq.Queue, kind mq.Kind) mq.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg, ok := out.Poll()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if msg.Kind == kind {
			return msg
		}
	}
	t.Fatalf("timed out waiting for message kind %d", kind)
	return mq.Message{}
}

func newTestAnalyzer(t *testing.T, mode analyzer.Mode, sweep analyzer.SweepPlan) (*analyzer.Analyzer, *fakeSource) {
	t.Helper()
	info := source.Info{
		EffectiveRate:    48000,
		SourceSampleRate: 48000,
		RealTime:         true, // disables throttle gating so capture cycles run eagerly
		Permissions:      source.PermSetFreq | source.PermSetBandwidth,
	}
	src := newFakeSource(info)
	a, err := analyzer.New(analyzer.Config{
		Source: src,
		Mode:   mode,
		Detector: detector.Params{
			Mode:       detector.ModeSpectrum,
			WindowSize: 64,
		},
		SchedWorkers: 1,
		MaxBuffers:   2,
		Sweep:        sweep,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, src
}

// TestNewEmitsSourceInit covers construction success: the analyzer must
// reach RUNNING and post a SOURCE_INIT{OK} message before any other
// output.
func TestNewEmitsSourceInit(t *testing.T) {
	a, _ := newTestAnalyzer(t, analyzer.ModeChannel, analyzer.SweepPlan{})

	msg := waitForKind(t, a.Out(), analyzer.KindSourceInit)
	payload := msg.Payload.(analyzer.SourceInitPayload)
	assert.Equal(t, analyzer.SourceInitOK, payload.Status)
	assert.Equal(t, "RUNNING", a.State())
}

// TestOpenSetFrequencySetBandwidthCloseRoundTrip covers the OPEN /
// SetInspectorFrequency / SetInspectorBandwidth / CLOSE ack ordering:
// each synchronous call must complete before the next is issued, and a
// mutator against a closed handle must fail.
func TestOpenSetFrequencySetBandwidthCloseRoundTrip(t *testing.T) {
	a, _ := newTestAnalyzer(t, analyzer.ModeChannel, analyzer.SweepPlan{})
	waitForKind(t, a.Out(), analyzer.KindSourceInit)

	handle, err := a.Open(1000, 8000, 0, false, func() inspector.Inspector { return &fakeInspector{} })
	require.NoError(t, err)
	assert.Equal(t, 1, a.NumInspectors())

	require.NoError(t, a.SetInspectorFrequency(handle, 2000))
	require.NoError(t, a.SetInspectorBandwidth(handle, 4000))
	require.NoError(t, a.CloseInspector(handle))

	assert.Error(t, a.SetInspectorFrequency(handle, 3000))
}

// TestThrottleOverrideAndReset covers the THROTTLE override/reset
// round-trip: both calls must be accepted while the analyzer is
// running.
func TestThrottleOverrideAndReset(t *testing.T) {
	a, _ := newTestAnalyzer(t, analyzer.ModeChannel, analyzer.SweepPlan{})
	waitForKind(t, a.Out(), analyzer.KindSourceInit)

	require.NoError(t, a.OverrideThrottle(12345))
	require.NoError(t, a.ResetThrottle())
}

// TestWideSpectrumSweepVisitsEveryPartition covers sweep coverage: over
// a short run, the source must have been retuned to every partition
// center in the configured range.
func TestWideSpectrumSweepVisitsEveryPartition(t *testing.T) {
	sweep := analyzer.SweepPlan{
		MinFreq:       0,
		MaxFreq:       48000 * 4,
		Strategy:      analyzer.SweepLinear,
		Partitioning:  analyzer.PartitionContiguous,
		FFTMinSamples: 64,
	}
	a, src := newTestAnalyzer(t, analyzer.ModeWideSpectrum, sweep)
	waitForKind(t, a.Out(), analyzer.KindSourceInit)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(src.frequenciesCalled()) >= 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	seen := map[float64]bool{}
	for _, f := range src.frequenciesCalled() {
		seen[f] = true
	}
	assert.GreaterOrEqual(t, len(seen), 4, "expected the sweep to have visited every partition at least once")
}

// TestCloseIsIdempotentAndSafeWithOpenInspector covers HALT-during-
// teardown safety: closing an analyzer with an inspector still open
// must not deadlock or panic, and a second Close call must be a no-op.
func TestCloseIsIdempotentAndSafeWithOpenInspector(t *testing.T) {
	a, _ := newTestAnalyzer(t, analyzer.ModeChannel, analyzer.SweepPlan{})
	waitForKind(t, a.Out(), analyzer.KindSourceInit)

	_, err := a.Open(1000, 8000, 0, false, func() inspector.Inspector { return &fakeInspector{} })
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
