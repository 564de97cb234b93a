package analyzer

import (
	"log"
	"time"

	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/source"
	"github.com/cwsl/sdranalyzer/internal/tuner"
	"github.com/cwsl/sdranalyzer/internal/worker"
)

// EOSPayload carries an optional hard error alongside an EOS
// notification (spec.md §7: a hard, non-retryable source.Read error
// transitions the analyzer the same way natural end-of-stream does).
type EOSPayload struct {
	Err error
}

// channelCaptureTask is the source-worker callback for channel mode
// (spec.md §4.J "Capture callbacks", channel mode): acquire a buffer,
// read, run the baseband filter chain, feed the detector, fan out to
// the tuner, then join the cycle barrier.
func (a *Analyzer) channelCaptureTask(out *mq.Queue, private any) worker.Disposition {
	buf, err := a.bufPool.Acquire()
	if err != nil {
		return worker.Done
	}

	n, cont := a.readOneBulk(buf.Data)
	if !cont {
		buf.Release()
		return worker.Done
	}
	if n == 0 {
		buf.Release()
		return worker.Continue
	}

	a.runCycle(buf.Data[:n])
	buf.Release()
	return worker.Continue
}

// wideCaptureTask is the source-worker callback for wide-spectrum mode
// (spec.md §4.J "Capture callbacks", wide mode): identical to channel
// mode, plus sweep-plan hop tracking and source retuning at hop
// boundaries (spec.md §3 "Sweep Plan").
func (a *Analyzer) wideCaptureTask(out *mq.Queue, private any) worker.Disposition {
	buf, err := a.bufPool.Acquire()
	if err != nil {
		return worker.Done
	}

	n, cont := a.readOneBulk(buf.Data)
	if !cont {
		buf.Release()
		return worker.Done
	}
	if n == 0 {
		buf.Release()
		return worker.Continue
	}

	a.runCycle(buf.Data[:n])

	a.sweepMu.Lock()
	hopped := a.sweepCursor.advance(n, a.currentSweep.FFTMinSamples)
	if hopped && a.sweepRequested {
		a.currentSweep = a.pendingSweep
		a.sweepRequested = false
		a.sweepCursor.reset(a.currentSweep, a.sampleRate)
	}
	nextFreq := a.sweepCursor.currentFreq()
	a.sweepMu.Unlock()

	if hopped {
		if err := a.src.SetFrequency(nextFreq); err != nil {
			log.Printf("analyzer: wide-spectrum retune to %f: %v", nextFreq, err)
		}
	}

	buf.Release()
	return worker.Continue
}

// readOneBulk fills buf (throttle-gated for non-realtime sources) and
// reports how many samples were read. cont is false when the capture
// task should terminate (EOS or hard error already posted).
func (a *Analyzer) readOneBulk(buf []source.Sample) (int, bool) {
	want := len(buf)
	if !a.getSrcInfo().RealTime {
		want = a.throttle.Allowed(want)
		if want == 0 {
			return 0, true
		}
	}

	res := a.src.Read(buf[:want])
	switch res.Kind {
	case source.ReadTimeout, source.ReadOverflow, source.ReadUnderflow:
		return 0, true
	case source.ReadEOS:
		a.inMQ.Write(KindEOS, EOSPayload{})
		return 0, false
	case source.ReadError:
		a.inMQ.Write(KindEOS, EOSPayload{Err: res.Err})
		return 0, false
	default:
		a.updateMeasuredRate(res.Count)
		return res.Count, true
	}
}

// updateMeasuredRate maintains a simple exponential estimate of the
// realized sample rate (spec.md §6 "get_measured_samp_rate"; §8
// scenario 3: "observe that measured_samp_rate converges ... within 1%
// ... over 2s").
func (a *Analyzer) updateMeasuredRate(n int) {
	now := time.Now()
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	if a.lastRateTick.IsZero() {
		a.lastRateTick = now
		return
	}
	elapsed := now.Sub(a.lastRateTick).Seconds()
	a.lastRateTick = now
	if elapsed <= 0 {
		return
	}

	instant := float64(n) / elapsed
	prev := a.GetMeasuredSampRate()
	if prev == 0 {
		a.setMeasuredSampRate(instant)
		return
	}
	const alpha = 0.2
	a.setMeasuredSampRate(prev*(1-alpha) + instant*alpha)
}

// runCycle applies the baseband filter chain, feeds the detector, fans
// out to the tuner, applies any pending inspector overridable requests
// at this safe point, and joins the cycle barrier exactly once (spec.md
// §3 invariant: "barrier width equals #scheduler workers + 1").
func (a *Analyzer) runCycle(samples []source.Sample) {
	a.filtersMu.Lock()
	filters := a.filters
	a.filtersMu.Unlock()
	for _, f := range filters {
		f(samples)
	}

	a.loopMu.Lock()
	measured := a.GetMeasuredSampRate()
	consumed, result, err := a.det.FeedBulk(samples, measured)
	a.loopMu.Unlock()
	if err != nil {
		log.Printf("analyzer: detector FeedBulk: %v", err)
	}
	if consumed > 0 {
		if result.PSD != nil {
			a.outMQ.Write(KindPSD, PSDPayload{Frame: result.PSD})
		}
		if result.Channels != nil {
			a.inMQ.Write(KindChannel, ChannelListPayload{Channels: result.Channels})
		}
		if result.Baud != nil {
			a.outMQ.Write(KindOutBaud, BaudPayload{Estimate: result.Baud})
		}
	}

	a.tun.Push(samples)
	a.applyPendingOverridables()

	a.sched.Cycle()
	a.sched.Barrier().Wait()
}

// onTunerData is the tuner's OnData callback for every open channel; it
// forwards the extracted bulk to the scheduler, which queues the actual
// inspector invocation onto the owning worker (spec.md §4.G/§4.I).
func (a *Analyzer) onTunerData(ch *tuner.Channel, data []source.Sample) {
	handle, ok := ch.Priv.(int)
	if !ok {
		return
	}
	if err := a.sched.Feed(handle, data); err != nil {
		log.Printf("analyzer: tuner channel %d feed: %v", handle, err)
	}
}

// applyPendingOverridables drains every inspector's pending frequency/
// bandwidth change and applies it to the tuner, at the one point in the
// cycle where no tuner lock is held by this goroutine (spec.md §4.H/§9:
// overridable requests are "drained by the scheduler at safe points").
// Deliberately outside tuner.Push's callback: Tuner.Push holds its
// internal read lock for the duration of the fan-out, and
// SetFrequency/SetBandwidth need the write lock, so applying retunes
// from inside OnData would deadlock.
func (a *Analyzer) applyPendingOverridables() {
	a.invMu.Lock()
	pending := make([]*OverridableRequest, len(a.overridables))
	copy(pending, a.overridables)
	a.invMu.Unlock()

	for _, req := range pending {
		if !req.HasFreq && !req.HasBW {
			continue
		}

		a.schedMu.Lock()
		ch, ok := a.tunerChans[req.Handle]
		if ok {
			if req.HasFreq {
				a.tun.SetFrequency(ch, req.Freq)
			}
			if req.HasBW {
				if err := a.tun.SetBandwidth(ch, req.BW); err != nil {
					log.Printf("analyzer: apply overridable bandwidth for handle %d: %v", req.Handle, err)
				}
			}
		}
		a.schedMu.Unlock()

		a.drainOverridable(req.Handle)
	}
}
