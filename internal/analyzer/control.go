package analyzer

import (
	"log"

	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/worker"
)

// controlLoop is the control thread (spec.md §4.J "Control thread
// loop"): it pushes the initial capture task, emits SOURCE_INIT, then
// multiplexes the input queue against the dispatch table below until a
// HALT is observed.
func (a *Analyzer) controlLoop() {
	defer close(a.controlDone)

	switch a.mode {
	case ModeWideSpectrum:
		a.sourceWorker.Push(a.wideCaptureTask)
	default:
		a.sourceWorker.Push(a.channelCaptureTask)
	}

	a.lifecycle.Store(int32(stateRunning))
	a.running.Store(true)
	a.outMQ.Write(KindSourceInit, SourceInitPayload{Status: SourceInitOK})

	halted := false
	for !halted {
		msg, ok := a.inMQ.Read()
		if !ok {
			break
		}
		halted = a.dispatch(msg)

		for !halted {
			next, ok := a.inMQ.Poll()
			if !ok {
				break
			}
			halted = a.dispatch(next)
		}
	}

	// Exit sequence (spec.md §4.J step 4): stop capture, drain any
	// further messages (an urgent HALT racing in from Close), clear
	// running.
	a.src.Cancel()
	a.lifecycle.Store(int32(stateStopping))
	for {
		msg, ok := a.inMQ.Poll()
		if !ok {
			break
		}
		if msg.Kind == KindHalt {
			a.outMQ.Write(KindOutHalt, nil)
			break
		}
		a.disposeInput(msg.Kind, msg.Payload)
	}
	a.running.Store(false)
}

// dispatch processes one input-queue message, returning true if it was
// a HALT (or an unrecoverable EOS) that should end the control loop.
func (a *Analyzer) dispatch(msg mq.Message) bool {
	switch msg.Kind {
	case KindHalt:
		a.outMQ.Write(KindOutHalt, nil)
		return true

	case KindInspector:
		cmd, ok := msg.Payload.(InspectorCmd)
		if !ok {
			log.Printf("analyzer: dropped malformed INSPECTOR message")
			return false
		}
		a.handleInspectorCmd(cmd)
		return false

	case KindEOS:
		a.outMQ.Write(KindOutEOS, msg.Payload)
		return true

	case KindChannel:
		a.outMQ.Write(KindOutChannel, msg.Payload)
		return false

	case KindThrottle:
		payload, ok := msg.Payload.(ThrottlePayload)
		if !ok {
			log.Printf("analyzer: dropped malformed THROTTLE message")
			return false
		}
		if payload.SampRate == 0 {
			a.throttle.Override(a.nominalRate)
		} else {
			a.throttle.Override(payload.SampRate)
		}
		return false

	case KindParams:
		payload, ok := msg.Payload.(ParamsPayload)
		if !ok {
			log.Printf("analyzer: dropped malformed PARAMS message")
			return false
		}
		a.applyParams(payload)
		return false

	default:
		log.Printf("analyzer: dropped message of unknown kind %d", msg.Kind)
		return false
	}
}

// applyParams implements spec.md §4.J step 3's PARAMS handling: under
// the loop mutex, build a new detector.Params from the requested fields
// plus the current sample rate, and recreate the detector with it.
func (a *Analyzer) applyParams(p ParamsPayload) {
	a.loopMu.Lock()
	defer a.loopMu.Unlock()

	newParams := detectorParamsFromPayload(p, a.sampleRate)
	newDet, err := newDetectorFor(newParams)
	if err != nil {
		log.Printf("analyzer: PARAMS rejected: %v", err)
		return
	}

	a.det = newDet
	a.intervalChan = p.IntervalChannels
	if p.IntervalPSD != a.intervalPSD {
		a.intervalPSD = p.IntervalPSD
	}
}

// disposeInput releases a payload that was never consumed by the
// control loop, e.g. an INSPECTOR command still pending at teardown
// (spec.md §4.J step 4: "dispose current message if retained").
func (a *Analyzer) disposeInput(kind mq.Kind, payload any) {
	if kind != KindInspector {
		return
	}
	cmd, ok := payload.(InspectorCmd)
	if !ok || cmd.ReplyTo == nil {
		return
	}
	select {
	case cmd.ReplyTo <- ErrClosed:
	default:
	}
}

// haltAllWorkers is used by Close; kept here for proximity to the
// control-loop lifecycle it mirrors.
func (a *Analyzer) haltAllWorkers() {
	a.sourceWorker.Halt()
	<-a.sourceWorker.Done()
	a.slowWorker.Halt()
	<-a.slowWorker.Done()
}

// slowControlTask builds a worker.Task that applies fn against the
// source adapter and writes its result onto the output queue, the Go
// analog of spec.md §4.J's slow-control path: "mutators that touch
// hardware enqueue a request on the slow worker, which applies it via
// the source adapter and writes a completion onto the output MQ."
func slowControlTask(kind mq.Kind, fn func() error) worker.Task {
	return func(out *mq.Queue, private any) worker.Disposition {
		err := fn()
		out.Write(kind, SlowControlResult{Err: err})
		return worker.Done
	}
}

// SlowControlResult is the completion message a slow-worker mutator
// writes to the output queue.
type SlowControlResult struct {
	Err error
}

// Slow-control output kinds (spec.md §6, completion acks for the
// mutators that touch hardware).
const (
	KindFrequencySet mq.Kind = iota + 4000
	KindGainSet
	KindAntennaSet
	KindBandwidthSet
	KindDCRemoveSet
	KindAGCSet
)
