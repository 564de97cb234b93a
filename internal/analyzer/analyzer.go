package analyzer

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwsl/sdranalyzer/internal/bufpool"
	"github.com/cwsl/sdranalyzer/internal/detector"
	"github.com/cwsl/sdranalyzer/internal/inspector"
	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/sched"
	"github.com/cwsl/sdranalyzer/internal/source"
	"github.com/cwsl/sdranalyzer/internal/throttle"
	"github.com/cwsl/sdranalyzer/internal/tuner"
	"github.com/cwsl/sdranalyzer/internal/worker"
)

// Mode selects the analyzer's acquisition strategy (spec.md §6: "Mode
// enum: {CHANNEL, WIDE_SPECTRUM}").
type Mode int

const (
	ModeChannel Mode = iota
	ModeWideSpectrum
)

// lifecycleState is the analyzer's own state machine (spec.md §4.J.1):
// CREATED -> STARTING -> RUNNING -> STOPPING -> STOPPED.
type lifecycleState int32

const (
	stateCreated lifecycleState = iota
	stateStarting
	stateRunning
	stateStopping
	stateStopped
)

func (s lifecycleState) String() string {
	switch s {
	case stateCreated:
		return "CREATED"
	case stateStarting:
		return "STARTING"
	case stateRunning:
		return "RUNNING"
	case stateStopping:
		return "STOPPING"
	case stateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// FilterFunc is one stage of the baseband filter chain applied to every
// captured bulk before it reaches the detector and tuner (spec.md §2
// data flow: "source -> (throttle) -> source worker callback ->
// (baseband-filter chain) -> {channel-detector, spectral-tuner}").
type FilterFunc func(samples []source.Sample)

// InspFactory constructs a fresh Inspector implementation for an OPEN
// command. The analyzer calls it once per Open and wraps the result in
// an *inspector.Instance.
type InspFactory func() inspector.Inspector

// Config constructs an Analyzer. Source must already be open (spec.md
// §1: the concrete radio hardware driver is an external collaborator;
// the analyzer only drives an already-open Source).
type Config struct {
	Source source.Source
	Mode   Mode

	Detector detector.Params

	// SchedWorkers is the inspector scheduler's fixed worker-pool size;
	// 0 selects sched.New's CPU-derived default (REDESIGN FLAGS: "pool
	// size is fixed at construction").
	SchedWorkers int

	// MaxBuffers bounds the sample buffer pool's outstanding read
	// buffers; 0 defaults to 4.
	MaxBuffers int

	// VMCircularBuffers backs the read-buffer pool with real anonymous
	// mmap regions instead of heap allocations (spec.md §4.B's
	// vm_circularity option; see internal/bufpool.NewVMCircular).
	VMCircularBuffers bool

	// Sweep is the wide-spectrum sweep plan; required when Mode is
	// ModeWideSpectrum, ignored otherwise.
	Sweep SweepPlan
}

// Analyzer is the Local Analyzer (spec.md §4.J): the control-thread
// orchestration core that owns the source, detector, tuner, inspector
// scheduler and the slow-control path.
type Analyzer struct {
	mode Mode

	src source.Source

	bufPool  *bufpool.Pool
	readSize int

	loopMu       sync.Mutex // loop mutex (spec.md §5 lock ordering, leaf above throttle)
	det          *detector.Detector
	sampleRate   float64
	intervalPSD  time.Duration
	intervalChan time.Duration
	// srcInfo is read/written only under loopMu (spec.md §3: "All
	// source/detector config changes occur under the loop mutex"); it is
	// read from several goroutines (the capture loop, mutators called
	// from arbitrary caller goroutines, CommitSourceInfo), so every access
	// goes through getSrcInfo/setSrcInfo rather than touching it directly.
	srcInfo source.Info

	schedMu    sync.Mutex // sched lock: guards all tuner mutations
	tun        *tuner.Tuner
	tunerChans map[int]*tuner.Channel
	sched      *sched.Scheduler

	invMu        sync.Mutex // inspector-list mutex
	inspectors   []*inspector.Instance
	overridables []*OverridableRequest

	filtersMu sync.Mutex
	filters   []FilterFunc

	iqReverse     atomic.Bool
	bufferingSize atomic.Int64

	throttle     *throttle.Throttle
	nominalRate  float64
	measuredRate atomic.Uint64 // math.Float64bits
	rateMu       sync.Mutex
	lastRateTick time.Time

	sweepMu     sync.Mutex
	currentSweep SweepPlan
	pendingSweep SweepPlan
	sweepRequested bool
	sweepCursor *sweepCursor

	sourceWorker *worker.Worker
	slowWorker   *worker.Worker

	inMQ  *mq.Queue
	outMQ *mq.Queue

	srcCancel context.CancelFunc

	lifecycle   atomic.Int32
	running     atomic.Bool
	closing     atomic.Bool
	controlDone chan struct{}
}

// New constructs and starts a Local Analyzer (spec.md §4.J Startup
// sequence). Capture begins immediately; the caller must eventually
// call Close to tear it down cleanly.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("analyzer: construct: %w", fmt.Errorf("source is required"))
	}

	info := cfg.Source.Info()

	detParams := cfg.Detector
	detParams.SampleRate = info.EffectiveRate
	det, err := detector.New(detParams)
	if err != nil {
		return nil, fmt.Errorf("analyzer: construct detector: %w", err)
	}

	readSize := readSizeFor(info)
	maxBuffers := cfg.MaxBuffers
	if maxBuffers <= 0 {
		maxBuffers = 4
	}

	pool := bufpool.New(readSize, maxBuffers)
	if cfg.VMCircularBuffers {
		pool = bufpool.NewVMCircular(readSize, maxBuffers)
	}

	a := &Analyzer{
		mode:         cfg.Mode,
		src:          cfg.Source,
		srcInfo:      info,
		bufPool:      pool,
		readSize:     readSize,
		det:          det,
		sampleRate:   info.EffectiveRate,
		intervalPSD:  detParams.IntervalPSD,
		intervalChan: detParams.IntervalChannels,
		tun:          tuner.New(info.EffectiveRate),
		tunerChans:   make(map[int]*tuner.Channel),
		nominalRate:  info.EffectiveRate,
		controlDone:  make(chan struct{}),
	}

	rate := info.EffectiveRate
	if info.RealTime {
		rate = 0 // throttle disabled: hardware paces reads
	}
	a.throttle = throttle.New(rate)

	inMQ := mq.New()
	outMQ := mq.New()
	a.inMQ = inMQ
	a.outMQ = outMQ

	a.sched = sched.New(cfg.SchedWorkers, outMQ)
	a.sourceWorker = worker.New("source-worker", inMQ, nil)
	a.slowWorker = worker.New("slow-worker", outMQ, cfg.Source)

	if cfg.Mode == ModeWideSpectrum {
		if cfg.Sweep.MaxFreq-cfg.Sweep.MinFreq < info.EffectiveRate {
			a.teardownPartial()
			return nil, ErrSweepRange
		}
		a.currentSweep = cfg.Sweep
		a.pendingSweep = cfg.Sweep
		a.sweepCursor = newSweepCursor(cfg.Sweep, info.EffectiveRate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.srcCancel = cancel
	if err := cfg.Source.Start(ctx); err != nil {
		cancel()
		a.teardownPartial()
		return nil, fmt.Errorf("analyzer: start source: %w", err)
	}

	// Step 3: the hardware may report an effective rate different from
	// what was configured; re-create the detector at the true rate.
	info2 := cfg.Source.Info()
	a.srcInfo = info2
	if info2.EffectiveRate != info.EffectiveRate && info2.EffectiveRate > 0 {
		detParams.SampleRate = info2.EffectiveRate
		if newDet, derr := detector.New(detParams); derr == nil {
			a.det = newDet
			a.sampleRate = info2.EffectiveRate
		} else {
			log.Printf("analyzer: recreate detector at effective rate %f: %v", info2.EffectiveRate, derr)
		}
	}

	a.AddBasebandFilter(a.iqReverseFilter)

	a.lifecycle.Store(int32(stateStarting))
	go a.controlLoop()

	return a, nil
}

// teardownPartial releases resources allocated before a construction
// failure (spec.md §7: "Construction errors ... abort ctor, free
// partial state, return nothing").
func (a *Analyzer) teardownPartial() {
	if a.bufPool != nil {
		a.bufPool.Close()
	}
	if a.sched != nil {
		a.sched.Destroy()
	}
	if a.sourceWorker != nil {
		a.sourceWorker.Halt()
		<-a.sourceWorker.Done()
	}
	if a.slowWorker != nil {
		a.slowWorker.Halt()
		<-a.slowWorker.Done()
	}
}

// Mode reports the analyzer's acquisition mode.
func (a *Analyzer) Mode() Mode { return a.mode }

// State reports the analyzer's lifecycle state (spec.md §4.J.1).
func (a *Analyzer) State() string {
	return lifecycleState(a.lifecycle.Load()).String()
}

// In returns the analyzer's input queue; external callers post typed
// control messages here (spec.md §2, "Control flow").
func (a *Analyzer) In() *mq.Queue { return a.inMQ }

// Out returns the analyzer's output queue; consumers read SOURCE_INIT,
// EOS, CHANNEL, PSD, INSPECTOR and HALT-ack messages here (spec.md §6).
func (a *Analyzer) Out() *mq.Queue { return a.outMQ }

// Write posts an arbitrary message onto the analyzer's input queue
// (spec.md §6, "write(kind,payload)").
func (a *Analyzer) Write(kind mq.Kind, payload any) error {
	if a.closing.Load() {
		return ErrClosed
	}
	a.inMQ.Write(kind, payload)
	return nil
}

// ReqHalt requests analyzer shutdown (spec.md §6, "req_halt").
func (a *Analyzer) ReqHalt() {
	a.inMQ.WriteUrgent(KindHalt, nil)
}

// ForceEOS forces the source to end its stream, the direct analog of
// suscan's suscan_source_force_eos used both by req_halt's caller and
// by the dtor sequence (spec.md §4.J Teardown step 1).
func (a *Analyzer) ForceEOS() {
	a.src.Cancel()
}

// IsRealTime reports whether the underlying source is a live,
// hardware-paced feed (spec.md §6, "is_real_time").
func (a *Analyzer) IsRealTime() bool {
	return a.getSrcInfo().RealTime
}

// GetSampRate reports the detector's configured sample rate (spec.md
// §6, "get_samp_rate"), which is always the source's effective rate,
// not necessarily the originally requested one (spec.md §8: "OPEN on a
// source whose effective sample rate differs from requested must yield
// an analyzer whose get_samp_rate reports the effective value").
func (a *Analyzer) GetSampRate() float64 {
	a.loopMu.Lock()
	defer a.loopMu.Unlock()
	return a.sampleRate
}

// GetMeasuredSampRate reports the most recently measured sample rate
// (spec.md §6, "get_measured_samp_rate").
func (a *Analyzer) GetMeasuredSampRate() float64 {
	return math.Float64frombits(a.measuredRate.Load())
}

func (a *Analyzer) setMeasuredSampRate(rate float64) {
	a.measuredRate.Store(math.Float64bits(rate))
}

// GetSourceInfo returns a snapshot of the source's capability/rate info
// (spec.md §6, "get_source_info_pointer").
func (a *Analyzer) GetSourceInfo() source.Info {
	return a.getSrcInfo()
}

// CommitSourceInfo refreshes the analyzer's cached source info snapshot
// from the live source (spec.md §6, "commit_source_info").
func (a *Analyzer) CommitSourceInfo() {
	a.setSrcInfo(a.src.Info())
}

// getSrcInfo and setSrcInfo are the only places that touch a.srcInfo
// directly: every reader (IsRealTime, GetSourceInfo, the capture loop's
// throttle check, every permission-gated mutator) and every writer (New,
// CommitSourceInfo) goes through loopMu, per spec.md §3's "All
// source/detector config changes occur under the loop mutex" invariant.
// srcInfo is a multi-field struct, so a bare field read/write here would
// be a real data race, not just a stale-value risk.
func (a *Analyzer) getSrcInfo() source.Info {
	a.loopMu.Lock()
	defer a.loopMu.Unlock()
	return a.srcInfo
}

func (a *Analyzer) setSrcInfo(info source.Info) {
	a.loopMu.Lock()
	a.srcInfo = info
	a.loopMu.Unlock()
}

// AddBasebandFilter appends a stage to the baseband filter chain run on
// every captured bulk before detector/tuner fan-out. Per spec.md §9's
// first Open Question, the original's filter-registration code performs
// a dead double field assignment; this port writes it once.
func (a *Analyzer) AddBasebandFilter(f FilterFunc) {
	a.filtersMu.Lock()
	defer a.filtersMu.Unlock()
	a.filters = append(a.filters, f)
}

// NumInspectors reports the current size of the dense inspector table.
func (a *Analyzer) NumInspectors() int {
	a.invMu.Lock()
	defer a.invMu.Unlock()
	return len(a.inspectors)
}

func (a *Analyzer) lookupLocked(handle int) (*inspector.Instance, bool) {
	if handle < 0 || handle >= len(a.inspectors) {
		return nil, false
	}
	inst := a.inspectors[handle]
	if inst == nil {
		return nil, false
	}
	return inst, true
}
