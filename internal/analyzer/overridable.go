package analyzer

import (
	"sync"

	"github.com/cwsl/sdranalyzer/internal/inspector"
)

// OverridableRequest is a coalesced pending parameter change (freq,
// bandwidth) for one inspector (spec.md §3, "Overridable Request"). At
// most one request is in flight per inspector; repeated set-operations
// mutate it in place rather than queuing a second one.
type OverridableRequest struct {
	Handle int

	HasFreq bool
	Freq    float64
	HasBW   bool
	BW      float64
}

// OverridableGuard is returned by acquireOverridable with the
// analyzer's inspector-list mutex held across the call boundary
// (spec.md §4.J "Overridable acquisition", §9 Design Notes: "expressible
// as a guard object whose drop releases the lock"). Callers must call
// Release exactly once.
type OverridableGuard struct {
	req  *OverridableRequest
	mu   *sync.Mutex
	done bool
}

// Request returns the live request the guard protects. Safe to mutate
// while the guard is held.
func (g *OverridableGuard) Request() *OverridableRequest {
	return g.req
}

// Release unlocks the inspector-list mutex acquired by
// acquireOverridable. Calling Release twice is a no-op.
func (g *OverridableGuard) Release() {
	if g.done {
		return
	}
	g.done = true
	g.mu.Unlock()
}

// acquireOverridable implements spec.md §4.J's "Overridable
// acquisition": look up handle under the inspector-list mutex, require
// RUNNING, read user-data; if absent, allocate, re-validate, splice
// into the analyzer's list and publish it on the inspector's user-data.
// Returns the guard with the mutex still held; the caller must call
// Release.
//
// a.invMu (the inspector-list mutex) is held on return only in the
// success path; on failure it has already been unlocked and the guard
// is nil, so the caller calls Release only when err is nil.
func (a *Analyzer) acquireOverridable(handle int) (*OverridableGuard, error) {
	a.invMu.Lock()

	inst, ok := a.lookupLocked(handle)
	if !ok {
		a.invMu.Unlock()
		return nil, ErrBadHandle
	}
	if inst.State() != inspector.StateRunning {
		a.invMu.Unlock()
		return nil, ErrNotRunning
	}

	if ud := inst.UserData(); ud != nil {
		req := ud.(*OverridableRequest)
		return &OverridableGuard{req: req, mu: &a.invMu}, nil
	}

	// No pending request: allocate, then re-acquire (we never actually
	// released the mutex above since lookup+state-check+UserData all
	// ran under the single lock already held; the "release, allocate,
	// re-acquire, re-validate" dance in spec.md guards against an
	// allocator that can block or itself need the lock. Go's allocator
	// needs neither, so the re-validation collapses to the same
	// critical section without ever dropping the lock, which is
	// strictly stronger than the documented contract, not a violation
	// of it.
	req := &OverridableRequest{Handle: handle}
	a.overridables = append(a.overridables, req)
	inst.SetUserData(req)

	return &OverridableGuard{req: req, mu: &a.invMu}, nil
}

// drainOverridable removes req from the analyzer's list and clears the
// inspector's user-data slot, called by the scheduler at the safe point
// where it applies a pending change (spec.md §3: "drained by the
// scheduler at safe points; destroyed on drain or on analyzer
// teardown").
func (a *Analyzer) drainOverridable(handle int) *OverridableRequest {
	a.invMu.Lock()
	defer a.invMu.Unlock()

	inst, ok := a.lookupLocked(handle)
	if !ok {
		return nil
	}
	ud := inst.UserData()
	if ud == nil {
		return nil
	}
	inst.ClearUserData()

	req := ud.(*OverridableRequest)
	for i, r := range a.overridables {
		if r == req {
			a.overridables = append(a.overridables[:i], a.overridables[i+1:]...)
			break
		}
	}
	return req
}

// freeOverridables destroys every pending overridable request at
// teardown (spec.md §4.J Teardown step 6).
func (a *Analyzer) freeOverridables() {
	a.invMu.Lock()
	defer a.invMu.Unlock()
	a.overridables = nil
}
