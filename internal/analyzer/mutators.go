package analyzer

import (
	"github.com/cwsl/sdranalyzer/internal/source"
)

// Mutators that touch hardware run on the slow worker (spec.md §4.J
// "Slow-control path"); they post a completion message to the output
// queue rather than returning the hardware result synchronously
// (spec.md §7 Propagation policy: "detail is carried to the user via
// the output MQ, never via the return value"). The returned error here
// only reports whether the request was *accepted* (queued), e.g.
// rejected up front by a permission check.

// SetFrequency implements "set_frequency(freq,lnb)" (spec.md §6): lnb
// is a down-converter local-oscillator offset subtracted from freq
// before tuning the actual hardware.
func (a *Analyzer) SetFrequency(freq, lnb float64) error {
	if a.getSrcInfo().Permissions&source.PermSetFreq == 0 {
		return ErrUnsupported
	}
	a.slowWorker.Push(slowControlTask(KindFrequencySet, func() error {
		return a.src.SetFrequency(freq - lnb)
	}))
	return nil
}

// SetGain implements "set_gain(name,val)" (spec.md §6).
func (a *Analyzer) SetGain(name string, val float64) error {
	if a.getSrcInfo().Permissions&source.PermSetGain == 0 {
		return ErrUnsupported
	}
	a.slowWorker.Push(slowControlTask(KindGainSet, func() error {
		return a.src.SetGain(name, val)
	}))
	return nil
}

// SetAntenna implements "set_antenna(name)" (spec.md §6).
func (a *Analyzer) SetAntenna(name string) error {
	if a.getSrcInfo().Permissions&source.PermSetAntenna == 0 {
		return ErrUnsupported
	}
	a.slowWorker.Push(slowControlTask(KindAntennaSet, func() error {
		return a.src.SetAntenna(name)
	}))
	return nil
}

// SetBandwidth implements "set_bandwidth(val)" (spec.md §6).
func (a *Analyzer) SetBandwidth(hz float64) error {
	if a.getSrcInfo().Permissions&source.PermSetBandwidth == 0 {
		return ErrUnsupported
	}
	a.slowWorker.Push(slowControlTask(KindBandwidthSet, func() error {
		return a.src.SetBandwidth(hz)
	}))
	return nil
}

// SetDCRemove implements "set_dc_remove(bool)" (spec.md §6: "the
// analyzer must clear SET_DC_REMOVE when the underlying hardware lacks
// DC-offset support").
func (a *Analyzer) SetDCRemove(enabled bool) error {
	if a.getSrcInfo().Permissions&source.PermSetDCRemove == 0 {
		return ErrUnsupported
	}
	a.slowWorker.Push(slowControlTask(KindDCRemoveSet, func() error {
		return a.src.SetDCRemove(enabled)
	}))
	return nil
}

// SetAGC implements "set_agc(bool)" (spec.md §6).
func (a *Analyzer) SetAGC(enabled bool) error {
	if a.getSrcInfo().Permissions&source.PermSetAGC == 0 {
		return ErrUnsupported
	}
	a.slowWorker.Push(slowControlTask(KindAGCSet, func() error {
		return a.src.SetAGC(enabled)
	}))
	return nil
}

// In-process-only mutators (spec.md §4.J: "may run directly on the
// caller thread").

// SetIQReverse toggles I/Q channel swap, applied as a baseband filter
// stage rather than a hardware mutation.
func (a *Analyzer) SetIQReverse(enabled bool) {
	a.iqReverse.Store(enabled)
}

func (a *Analyzer) iqReverseFilter(samples []source.Sample) {
	if !a.iqReverse.Load() {
		return
	}
	for i, s := range samples {
		samples[i] = complex(imag(s), real(s))
	}
}

// SetBufferingSize implements "set_buffering_size(count)" (spec.md
// §6): an in-process-only knob, recorded for downstream consumers
// (e.g. an inspector output buffering policy) rather than resizing the
// already-constructed sample buffer pool, whose size is fixed at
// construction (REDESIGN FLAGS).
func (a *Analyzer) SetBufferingSize(count int) {
	a.bufferingSize.Store(int64(count))
}

// BufferingSize reports the current value set by SetBufferingSize.
func (a *Analyzer) BufferingSize() int {
	return int(a.bufferingSize.Load())
}

func (a *Analyzer) requireWideSpectrum() error {
	if a.mode != ModeWideSpectrum {
		return ErrWrongMode
	}
	return nil
}

// SetSweepStrategy implements "set_sweep_strategy(enum)" (spec.md §6,
// §8 idempotence: "set_sweep_strategy(S) then set_sweep_strategy(S)
// leaves pending_sweep_params.strategy = S and has applied exactly one
// publish event").
func (a *Analyzer) SetSweepStrategy(s SweepStrategy) error {
	if err := a.requireWideSpectrum(); err != nil {
		return err
	}
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	a.pendingSweep.Strategy = s
	a.sweepRequested = true
	return nil
}

// SetSpectrumPartitioning implements "set_spectrum_partitioning(enum)"
// (spec.md §6).
func (a *Analyzer) SetSpectrumPartitioning(p SpectrumPartitioning) error {
	if err := a.requireWideSpectrum(); err != nil {
		return err
	}
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	a.pendingSweep.Partitioning = p
	a.sweepRequested = true
	return nil
}

// SetHopRange implements "set_hop_range(min,max)" (spec.md §6).
func (a *Analyzer) SetHopRange(min, max float64) error {
	if err := a.requireWideSpectrum(); err != nil {
		return err
	}
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	a.pendingSweep.MinFreq = min
	a.pendingSweep.MaxFreq = max
	a.sweepRequested = true
	return nil
}

// OverrideThrottle implements the THROTTLE input message (spec.md §6):
// a non-zero rate overrides the pacer; zero resets to the source's
// nominal rate.
func (a *Analyzer) OverrideThrottle(sampRate float64) error {
	return a.Write(KindThrottle, ThrottlePayload{SampRate: sampRate})
}

// ResetThrottle is OverrideThrottle(0) (spec.md §8 idempotence:
// "override_throttle(R) then reset_throttle() equals the initial
// throttle with rate = source sample rate").
func (a *Analyzer) ResetThrottle() error {
	return a.OverrideThrottle(0)
}

// SetDetectorParams implements the PARAMS input message (spec.md §6).
func (a *Analyzer) SetDetectorParams(p ParamsPayload) error {
	return a.Write(KindParams, p)
}
