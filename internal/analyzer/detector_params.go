package analyzer

import "github.com/cwsl/sdranalyzer/internal/detector"

// detectorParamsFromPayload builds a fresh detector.Params from a
// PARAMS message, carrying over the sample rate, which the message
// doesn't carry; every other field comes from the message (spec.md §4.J step 3: "copy
// fields {window_size, window, fc} into a new detector-params,
// adjust"). Fc has no analog in this port's Detector, which already
// operates purely on baseband data with no local-oscillator offset
// concept of its own; it is accepted on the wire for protocol
// compatibility and otherwise unused here.
func detectorParamsFromPayload(p ParamsPayload, sampleRate float64) detector.Params {
	return detector.Params{
		Mode:             p.Mode,
		SampleRate:       sampleRate,
		WindowSize:       p.WindowSize,
		IntervalPSD:      p.IntervalPSD,
		IntervalChannels: p.IntervalChannels,
		MinSNRdB:         p.MinSNRdB,
		MaxChannels:      p.MaxChannels,
	}
}

// newDetectorFor is a thin indirection over detector.New kept so
// applyParams reads like the spec's "try in-place update, else
// recreate detector": this port's Detector has no in-place update path
// (its internal FFT plan is sized to WindowSize at construction), so
// every PARAMS update recreates it; the indirection documents that
// choice at the call site instead of silently inlining detector.New.
func newDetectorFor(p detector.Params) (*detector.Detector, error) {
	return detector.New(p)
}
