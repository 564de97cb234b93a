package analyzer

import (
	"github.com/cwsl/sdranalyzer/internal/inspector"
)

// handleInspectorCmd parses and applies one INSPECTOR control message
// (spec.md §4.J step 3: "INSPECTOR: hand to inspector-msg parser
// (open/close/set-config/...); parser takes ownership of payload").
func (a *Analyzer) handleInspectorCmd(cmd InspectorCmd) {
	switch cmd.Cmd {
	case InspectorOpen:
		handle, err := a.openInspector(cmd)
		if cmd.ReplyTo != nil {
			cmd.ReplyTo <- OpenResult{Handle: handle, Err: err}
		}

	case InspectorClose:
		err := a.closeInspector(cmd.Handle)
		if cmd.ReplyTo != nil {
			cmd.ReplyTo <- err
		}

	case InspectorSetFrequency:
		err := a.setInspectorOverridable(cmd.Handle, true, cmd.Fc, false, 0)
		if cmd.ReplyTo != nil {
			cmd.ReplyTo <- err
		}

	case InspectorSetBandwidth:
		err := a.setInspectorOverridable(cmd.Handle, false, 0, true, cmd.BW)
		if cmd.ReplyTo != nil {
			cmd.ReplyTo <- err
		}

	case InspectorSetConfig:
		err := a.setInspectorConfig(cmd.Handle, cmd.Config)
		if cmd.ReplyTo != nil {
			cmd.ReplyTo <- err
		}
	}
}

// openInspector implements OPEN (spec.md §3 Inspector: "Created in
// response to an OPEN command; transitions INIT->RUNNING once bound to
// a tuner channel"). The inspector table is a dense vector indexed by
// handle, resized only by the control thread (spec.md §5).
func (a *Analyzer) openInspector(cmd InspectorCmd) (int, error) {
	if cmd.Factory == nil {
		return 0, ErrBadHandle
	}

	a.invMu.Lock()
	handle := len(a.inspectors)
	inst := inspector.NewInstance(handle, cmd.Factory())
	a.inspectors = append(a.inspectors, inst)
	a.invMu.Unlock()

	a.schedMu.Lock()
	ch, err := a.tun.OpenChannel(cmd.Fc, cmd.BW, cmd.Guard, cmd.Precise, a.onTunerData, handle)
	a.schedMu.Unlock()
	if err != nil {
		inst.Halt()
		return handle, err
	}

	a.schedMu.Lock()
	a.tunerChans[handle] = ch
	a.schedMu.Unlock()

	if err := a.sched.Bind(handle, inst); err != nil {
		a.schedMu.Lock()
		a.tun.CloseChannel(ch)
		delete(a.tunerChans, handle)
		a.schedMu.Unlock()
		inst.Halt()
		return handle, err
	}

	return handle, nil
}

// closeInspector implements CLOSE (spec.md §3: "transitions to HALTED
// on explicit close ... at which point the binding is released inside
// the scheduler thread (no separate unbind call)"): this function halts
// the instance and feeds the scheduler one more (empty) bulk so the
// owning worker observes the non-RUNNING state and unbinds itself,
// exactly as it would for a close discovered mid-cycle. It then drops
// any pending overridable request, closes the tuner channel and closes
// the inspector implementation.
func (a *Analyzer) closeInspector(handle int) error {
	a.invMu.Lock()
	inst, ok := a.lookupLocked(handle)
	if !ok {
		a.invMu.Unlock()
		return ErrBadHandle
	}
	inst.Halt()
	a.invMu.Unlock()

	_ = a.sched.Feed(handle, nil)
	a.drainOverridable(handle)

	a.schedMu.Lock()
	if ch, ok := a.tunerChans[handle]; ok {
		a.tun.CloseChannel(ch)
		delete(a.tunerChans, handle)
	}
	a.schedMu.Unlock()

	return inst.Impl.Close()
}

// setInspectorOverridable implements the fast inspector-parameter-
// change path (spec.md §4.J "Overridable acquisition"): at most one
// request is in flight per inspector; repeated calls coalesce into the
// same pending request.
func (a *Analyzer) setInspectorOverridable(handle int, hasFreq bool, freq float64, hasBW bool, bw float64) error {
	guard, err := a.acquireOverridable(handle)
	if err != nil {
		return err
	}
	defer guard.Release()

	req := guard.Request()
	if hasFreq {
		req.HasFreq = true
		req.Freq = freq
	}
	if hasBW {
		req.HasBW = true
		req.BW = bw
	}
	return nil
}

// setInspectorConfig applies a generic demodulator config update
// directly; unlike frequency/bandwidth this is not coalesced through
// the overridable slot (spec.md §3 scopes the overridable request to
// "freq, bandwidth" only).
func (a *Analyzer) setInspectorConfig(handle int, cfg map[string]float64) error {
	a.invMu.Lock()
	inst, ok := a.lookupLocked(handle)
	a.invMu.Unlock()
	if !ok {
		return ErrBadHandle
	}
	if inst.State() != inspector.StateRunning {
		return ErrNotRunning
	}
	return inst.Impl.SetConfig(cfg)
}

// Open is the synchronous convenience wrapper around posting an
// InspectorOpen command and waiting for its reply, matching the OPEN
// scenario in spec.md §8 scenario 2.
func (a *Analyzer) Open(fc, bw, guard float64, precise bool, factory InspFactory) (int, error) {
	reply := make(chan any, 1)
	if err := a.Write(KindInspector, InspectorCmd{
		Cmd: InspectorOpen, Fc: fc, BW: bw, Guard: guard, Precise: precise,
		Factory: factory, ReplyTo: reply,
	}); err != nil {
		return 0, err
	}
	res := (<-reply).(OpenResult)
	return res.Handle, res.Err
}

// CloseInspector synchronously closes the inspector at handle.
func (a *Analyzer) CloseInspector(handle int) error {
	reply := make(chan any, 1)
	if err := a.Write(KindInspector, InspectorCmd{Cmd: InspectorClose, Handle: handle, ReplyTo: reply}); err != nil {
		return err
	}
	return replyErr(<-reply)
}

// SetInspectorFrequency implements the "inspector_frequency(handle,freq)"
// mutator (spec.md §6).
func (a *Analyzer) SetInspectorFrequency(handle int, freq float64) error {
	reply := make(chan any, 1)
	if err := a.Write(KindInspector, InspectorCmd{Cmd: InspectorSetFrequency, Handle: handle, Fc: freq, ReplyTo: reply}); err != nil {
		return err
	}
	return replyErr(<-reply)
}

// SetInspectorBandwidth implements the "inspector_bandwidth(handle,bw)"
// mutator (spec.md §6).
func (a *Analyzer) SetInspectorBandwidth(handle int, bw float64) error {
	reply := make(chan any, 1)
	if err := a.Write(KindInspector, InspectorCmd{Cmd: InspectorSetBandwidth, Handle: handle, BW: bw, ReplyTo: reply}); err != nil {
		return err
	}
	return replyErr(<-reply)
}

// SetInspectorConfig applies a generic demodulator config update.
func (a *Analyzer) SetInspectorConfig(handle int, cfg map[string]float64) error {
	reply := make(chan any, 1)
	if err := a.Write(KindInspector, InspectorCmd{Cmd: InspectorSetConfig, Handle: handle, Config: cfg, ReplyTo: reply}); err != nil {
		return err
	}
	return replyErr(<-reply)
}

func replyErr(v any) error {
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}
