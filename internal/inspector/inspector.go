// Package inspector implements the per-channel Inspector (spec.md
// §4.H): a polymorphic demodulator/measurement unit with a lifecycle
// state machine and a single overridable parameter-change slot.
//
// The concrete DSP inside a demodulator is explicitly out of scope
// (spec.md §1); AudioInspector below is a minimal, opaque FM/AM
// envelope demodulator whose only job is to give the RTP/Opus egress
// path (module N, grounded on opus_support.go's build-tag convention)
// something real to encode, not a faithful demodulator implementation.
package inspector

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwsl/sdranalyzer/internal/source"
)

// State is the inspector lifecycle state (spec.md §3).
type State int32

const (
	StateInit State = iota
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrNotRunning is returned by operations that require RUNNING
	// state (e.g. an overridable acquire against a closed inspector).
	ErrNotRunning = errors.New("inspector: not in RUNNING state")
	// ErrAlreadyBound is returned when Bind is called twice.
	ErrAlreadyBound = errors.New("inspector: already bound to a tuner channel")
)

// Config is demodulator-specific configuration, opaque to everything
// above the Inspector interface.
type Config map[string]float64

// Inspector is the polymorphic interface every demodulator/measurement
// unit implements: {Feed, SetConfig, Close} (spec.md §4.H).
type Inspector interface {
	// Feed processes one extracted-channel bulk and returns whatever
	// result payload should be emitted on the analyzer's output MQ as
	// an INSPECTOR message, or nil if this bulk produced no output.
	Feed(data []source.Sample) (any, error)
	SetConfig(cfg Config) error
	Close() error
}

// Instance wraps a concrete Inspector with the state machine, handle,
// and overridable-request slot the analyzer manages (spec.md §3's
// Inspector data model). The analyzer owns Instance; Instance owns the
// opaque Inspector.
type Instance struct {
	Handle int
	Impl   Inspector

	state   atomic.Int32
	boundMu sync.Mutex
	bound   bool

	// userdata is the single overridable-request slot; nil when no
	// request is in flight. The analyzer's overridable-acquire path
	// reads/writes this under its own inspector-list mutex, not
	// Instance's own lock (spec.md §4.J "Overridable acquisition").
	userdata atomic.Pointer[any]
}

// NewInstance wraps impl in state INIT with the given handle.
func NewInstance(handle int, impl Inspector) *Instance {
	inst := &Instance{Handle: handle, Impl: impl}
	inst.state.Store(int32(StateInit))
	return inst
}

// State returns the current lifecycle state.
func (inst *Instance) State() State {
	return State(inst.state.Load())
}

// Bind transitions INIT -> RUNNING once the inspector has a tuner
// channel and a registered scheduler task (spec.md §3). Bind is a
// no-op error if already bound.
func (inst *Instance) Bind() error {
	inst.boundMu.Lock()
	defer inst.boundMu.Unlock()

	if inst.bound {
		return ErrAlreadyBound
	}
	if !inst.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) {
		return fmt.Errorf("inspector: cannot bind from state %s", inst.State())
	}
	inst.bound = true
	return nil
}

// Halt transitions to HALTED. Safe to call from any state; a no-op if
// already halted. This is the explicit-close path (spec.md §3); when a
// scheduler worker finds the state has left RUNNING it only unbinds the
// task and does not call Halt.
func (inst *Instance) Halt() {
	inst.state.Store(int32(StateHalted))
}

// UserData returns the currently hung overridable request, or nil.
func (inst *Instance) UserData() any {
	p := inst.userdata.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetUserData hangs req on the inspector's single overridable slot.
func (inst *Instance) SetUserData(req any) {
	inst.userdata.Store(&req)
}

// ClearUserData removes any hung overridable request.
func (inst *Instance) ClearUserData() {
	inst.userdata.Store(nil)
}
