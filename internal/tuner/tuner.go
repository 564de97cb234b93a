// Package tuner implements the Spectral Tuner (spec.md §4.G): it
// maintains a set of sub-band extraction channels and, on every push of
// a wideband sample bulk, synchronously fires each channel's on-data
// callback with its extracted narrowband slice.
//
// Grounded on the teacher's SpectrumManager subscriber fan-out in
// spectrum.go (`distributeSpectrum`/`Subscribe`/`Unsubscribe`), adapted
// from "broadcast one []float32 spectrum frame to N buffered channels"
// to "extract N distinct narrowband complex streams from one wideband
// bulk and invoke each channel's callback synchronously", since the
// tuner's callback contract (spec.md: "the pointer is valid only until
// the next push") rules out the teacher's buffered-channel hand-off.
package tuner

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwsl/sdranalyzer/internal/source"
)

// OnData is invoked synchronously for every push that has data for this
// channel. data is valid only for the duration of the call; callbacks
// that need to retain samples must copy them.
type OnData func(ch *Channel, data []source.Sample)

// Channel is one sub-band extraction channel.
type Channel struct {
	ID     int
	Fc     float64 // center frequency relative to baseband DC, Hz
	BW     float64 // bandwidth, Hz
	Guard  float64 // guard band, Hz
	Precise bool   // precise (higher-cost, higher-quality) extraction
	OnData OnData
	Priv   any

	// decimation state, derived from Fc/BW/Guard at OpenChannel time
	decim    int
	phase    float64
	phaseInc float64
	scratch  []source.Sample
}

// Tuner owns a set of extraction channels and a baseband sample rate.
// All mutation (OpenChannel/CloseChannel) must happen with the caller's
// sched lock held, per spec.md §4.G; Tuner itself only guards its
// internal channel map so that a concurrent Push is never observed
// mutating the set mid-iteration.
type Tuner struct {
	sampleRate float64

	mu       sync.RWMutex
	channels map[int]*Channel
	nextID   int
}

// New creates a Tuner operating over a baseband stream at sampleRate.
func New(sampleRate float64) *Tuner {
	return &Tuner{sampleRate: sampleRate, channels: make(map[int]*Channel)}
}

// OpenChannel registers a new extraction channel and returns it. Caller
// must hold the sched lock (spec.md §4.G).
func (t *Tuner) OpenChannel(fc, bw, guard float64, precise bool, onData OnData, priv any) (*Channel, error) {
	if bw <= 0 || bw > t.sampleRate {
		return nil, fmt.Errorf("tuner: invalid bandwidth %f for sample rate %f", bw, t.sampleRate)
	}

	decim := int(t.sampleRate / bw)
	if decim < 1 {
		decim = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++

	ch := &Channel{
		ID:       id,
		Fc:       fc,
		BW:       bw,
		Guard:    guard,
		Precise:  precise,
		OnData:   onData,
		Priv:     priv,
		decim:    decim,
		phaseInc: 2 * math.Pi * fc / t.sampleRate,
	}
	t.channels[id] = ch
	return ch, nil
}

// CloseChannel unregisters a channel. Caller must hold the sched lock.
func (t *Tuner) CloseChannel(ch *Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.channels, ch.ID)
}

// SetFrequency retunes an open channel's center frequency in place.
// Caller must hold the sched lock.
func (t *Tuner) SetFrequency(ch *Channel, fc float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch.Fc = fc
	ch.phaseInc = 2 * math.Pi * fc / t.sampleRate
}

// SetBandwidth retunes an open channel's bandwidth in place, recomputing
// its decimation factor. Caller must hold the sched lock.
func (t *Tuner) SetBandwidth(ch *Channel, bw float64) error {
	if bw <= 0 || bw > t.sampleRate {
		return fmt.Errorf("tuner: invalid bandwidth %f for sample rate %f", bw, t.sampleRate)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ch.BW = bw
	decim := int(t.sampleRate / bw)
	if decim < 1 {
		decim = 1
	}
	ch.decim = decim
	return nil
}

// Push delivers one wideband bulk to every open channel: each channel
// mixes the bulk down to baseband at its center frequency and decimates
// by its configured factor, then synchronously invokes OnData with the
// result. The tuner's read lock is held for the whole fan-out, OnData
// calls included, so OpenChannel/CloseChannel/SetFrequency/SetBandwidth
// never race a Push; a callback that calls any of those four methods
// deadlocks, since each takes the write lock. The analyzer applies
// retunes after Push returns.
func (t *Tuner) Push(bulk []source.Sample) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, ch := range t.channels {
		out := t.extract(ch, bulk)
		if len(out) > 0 && ch.OnData != nil {
			ch.OnData(ch, out)
		}
	}
}

func (t *Tuner) extract(ch *Channel, bulk []source.Sample) []source.Sample {
	n := len(bulk) / ch.decim
	if n == 0 {
		return nil
	}
	if cap(ch.scratch) < n {
		ch.scratch = make([]source.Sample, n)
	}
	out := ch.scratch[:n]

	for i := 0; i < n; i++ {
		// Mix the decimated sample down by the channel's center
		// frequency (complex local oscillator), advancing phase once
		// per decimated output sample rather than per input sample:
		// an approximation acceptable for the channel's own coarse
		// extraction, refined by the channel's own DSP (precise flag)
		// if it needs better alias rejection than this plain decimator,
		// which keeps every decim-th sample without any averaging.
		lo := complex(math.Cos(ch.phase), -math.Sin(ch.phase))
		out[i] = bulk[i*ch.decim] * lo
		ch.phase += ch.phaseInc * float64(ch.decim)
		if ch.phase > math.Pi {
			ch.phase -= 2 * math.Pi
		} else if ch.phase < -math.Pi {
			ch.phase += 2 * math.Pi
		}
	}

	return out
}

// NumChannels reports how many extraction channels are currently open.
func (t *Tuner) NumChannels() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.channels)
}
