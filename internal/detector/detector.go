// Package detector implements the Channel Detector (spec.md §4.F): a
// DSP stage consuming complete sample bulks and emitting both PSD
// frames and detected-channel summaries at a configured cadence.
//
// Two modes exist: spectrum mode runs an FFT and reports power spectral
// density plus peak-detected channels; autocorrelation mode instead
// estimates a symbol baud rate from the bulk's autocorrelation. Both are
// grounded on the teacher's own `audio_extensions/morse/spectrum_analyzer.go`,
// the one place in the teacher's tree that already does gonum-based
// spectral peak detection with a percentile noise floor — generalized
// here from a real-valued, audio-rate FFT to a complex-valued,
// baseband-rate one via gonum's CmplxFFT, and from "CW tone peaks" to
// "candidate channel list".
package detector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwsl/sdranalyzer/internal/source"
)

// Mode selects the detector's operating algorithm.
type Mode int

const (
	ModeSpectrum Mode = iota
	ModeAutocorrelation
)

// PSDFrame is one power-spectral-density snapshot, the Go analog of the
// analyzer's PSD output message (spec.md §6).
type PSDFrame struct {
	Bins            []float64 // power per bin, linear
	N0              float64   // noise floor estimate, linear
	SampleRate      float64
	MeasuredRate    float64
	Timestamp       time.Time
	RTTimestamp     time.Time
	ClippedOverflow bool
}

// Channel is one detected candidate channel, the Go analog of the
// analyzer's CHANNEL output message entries (spec.md §6).
type Channel struct {
	Fc float64 // center frequency, Hz relative to baseband DC
	BW float64
	// SNR is the channel's peak power over N0, linear ratio.
	SNR float64
	S0  float64 // signal power estimate, linear
	N0  float64 // noise floor estimate, linear
}

// BaudEstimate is the autocorrelation mode's result.
type BaudEstimate struct {
	Baud      float64
	Timestamp time.Time
}

// Params configures a Detector; WindowSize must equal the bulk size
// passed to FeedBulk.
type Params struct {
	Mode             Mode
	SampleRate       float64
	WindowSize       int
	IntervalPSD      time.Duration
	IntervalChannels time.Duration
	MinSNRdB         float64
	MaxChannels      int
}

// Detector runs one DSP mode over fixed-size sample bulks. It is not
// safe for concurrent FeedBulk calls; the analyzer serializes calls
// under its loop mutex (spec.md §4.F, §5).
type Detector struct {
	params Params

	fft    *fourier.CmplxFFT
	window []float64

	lastPSD      time.Time
	lastChannels time.Time

	// autocorrelation scratch state
	acBuf []complex128
}

// New constructs a Detector for params. WindowSize and SampleRate must
// be positive.
func New(params Params) (*Detector, error) {
	if params.WindowSize <= 0 {
		return nil, fmt.Errorf("detector: window size must be positive, got %d", params.WindowSize)
	}
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("detector: sample rate must be positive, got %f", params.SampleRate)
	}
	if params.MaxChannels <= 0 {
		params.MaxChannels = 16
	}

	d := &Detector{params: params}

	switch params.Mode {
	case ModeSpectrum:
		d.fft = fourier.NewCmplxFFT(params.WindowSize)
		d.window = hannWindow(params.WindowSize)
	case ModeAutocorrelation:
		d.acBuf = make([]complex128, params.WindowSize)
	default:
		return nil, fmt.Errorf("detector: unknown mode %d", params.Mode)
	}

	return d, nil
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// Result carries whatever the detector produced this cycle; fields are
// nil/zero when that cadence has not elapsed.
type Result struct {
	PSD      *PSDFrame
	Channels []Channel
	Baud     *BaudEstimate
}

// FeedBulk consumes exactly WindowSize samples and returns however many
// were consumed (spec.md §4.F: "called with complete buffers of a
// configured window size"), along with any PSD/channel/baud output
// produced on this cycle's cadence.
func (d *Detector) FeedBulk(x []source.Sample, measuredRate float64) (int, Result, error) {
	if len(x) < d.params.WindowSize {
		return 0, Result{}, nil
	}

	switch d.params.Mode {
	case ModeSpectrum:
		return d.feedSpectrum(x[:d.params.WindowSize], measuredRate)
	case ModeAutocorrelation:
		return d.feedAutocorrelation(x[:d.params.WindowSize])
	default:
		return 0, Result{}, fmt.Errorf("detector: unknown mode %d", d.params.Mode)
	}
}

func (d *Detector) feedSpectrum(x []source.Sample, measuredRate float64) (int, Result, error) {
	windowed := make([]complex128, len(x))
	for i, s := range x {
		windowed[i] = complex128(s) * complex(d.window[i], 0)
	}

	coeffs := d.fft.Coefficients(nil, windowed)

	power := make([]float64, len(coeffs))
	for i, c := range coeffs {
		power[i] = real(c)*real(c) + imag(c)*imag(c)
	}

	n0 := percentile(power, 10)
	if n0 < 1e-12 {
		n0 = 1e-12
	}

	now := time.Now()
	var res Result

	if now.Sub(d.lastPSD) >= d.params.IntervalPSD {
		d.lastPSD = now
		res.PSD = &PSDFrame{
			Bins:         power,
			N0:           n0,
			SampleRate:   d.params.SampleRate,
			MeasuredRate: measuredRate,
			Timestamp:    now,
			RTTimestamp:  now,
		}
	}

	if now.Sub(d.lastChannels) >= d.params.IntervalChannels {
		d.lastChannels = now
		res.Channels = detectChannels(power, n0, d.params.SampleRate, d.params.MinSNRdB, d.params.MaxChannels)
	}

	return len(x), res, nil
}

func (d *Detector) feedAutocorrelation(x []source.Sample) (int, Result, error) {
	copy(d.acBuf, x)

	n := len(d.acBuf)
	var bestLag int
	var bestMag float64

	// Search lags corresponding to plausible baud rates (50-3000 baud at
	// the configured sample rate), the autocorrelation-mode analog of
	// the spectrum mode's peak search.
	minLag := int(d.params.SampleRate / 3000)
	maxLag := int(d.params.SampleRate / 50)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	for lag := minLag; lag <= maxLag; lag++ {
		var acc complex128
		for i := 0; i+lag < n; i++ {
			acc += d.acBuf[i] * cmplxConj(d.acBuf[i+lag])
		}
		mag := real(acc)*real(acc) + imag(acc)*imag(acc)
		if mag > bestMag {
			bestMag = mag
			bestLag = lag
		}
	}

	var res Result
	if bestLag > 0 {
		res.Baud = &BaudEstimate{
			Baud:      d.params.SampleRate / float64(bestLag),
			Timestamp: time.Now(),
		}
	}

	return n, res, nil
}

func cmplxConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func percentile(data []float64, p int) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	idx := (p * (len(sorted) - 1)) / 100
	return sorted[idx]
}

func detectChannels(power []float64, n0, sampleRate float64, minSNRdB float64, maxChannels int) []Channel {
	minSNR := math.Pow(10, minSNRdB/10)

	var channels []Channel
	for i := 1; i < len(power)-1; i++ {
		if power[i] <= power[i-1] || power[i] <= power[i+1] {
			continue
		}
		snr := power[i] / n0
		if snr < minSNR {
			continue
		}

		fc := binFrequency(i, len(power), sampleRate)
		channels = append(channels, Channel{
			Fc:  fc,
			BW:  sampleRate / float64(len(power)),
			SNR: snr,
			S0:  power[i],
			N0:  n0,
		})
	}

	sort.Slice(channels, func(i, j int) bool { return channels[i].SNR > channels[j].SNR })
	if len(channels) > maxChannels {
		channels = channels[:maxChannels]
	}
	return channels
}

// binFrequency maps an FFT bin index to a signed baseband frequency,
// folding bins past the Nyquist point into the negative range.
func binFrequency(bin, n int, sampleRate float64) float64 {
	if bin > n/2 {
		bin -= n
	}
	return float64(bin) * sampleRate / float64(n)
}
