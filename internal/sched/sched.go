// Package sched implements the Inspector Scheduler (spec.md §4.I): a
// fixed-size worker pool that binds tuner channels to inspectors,
// drives each bound inspector's Feed on new data, and rendezvous with
// the source worker at a cycle barrier once per capture cycle.
package sched

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/cwsl/sdranalyzer/internal/inspector"
	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/source"
	"github.com/cwsl/sdranalyzer/internal/worker"
)

// ErrNotBound is returned by Feed when no task-info exists for handle.
var ErrNotBound = errors.New("sched: handle not bound")

// Result is what a scheduler worker posts to the output MQ after
// running a bound inspector.
type Result struct {
	Handle  int
	Payload any
}

// SchedError is posted to the output MQ when a bound inspector's Feed
// returns an error.
type SchedError struct {
	Handle int
	Err    error
}

const (
	// KindResult tags a Result message on the scheduler's output MQ.
	KindResult mq.Kind = iota + 1000
	// KindError tags a SchedError message on the scheduler's output MQ.
	KindError
)

type taskInfo struct {
	handle int
	inst   *inspector.Instance
	owner  int
}

// Scheduler owns N worker threads (spec.md §4.I), a sched-lock guarded
// task-info table keyed by handle, and the cycle barrier shared with
// the source worker (width N+1).
type Scheduler struct {
	workers []*worker.Worker
	out     *mq.Queue

	mu    sync.Mutex // sched-lock
	tasks map[int]*taskInfo
	next  int

	barrier *Barrier
}

// New constructs a scheduler with n worker threads. n <= 0 means
// "implementation-tunable": the worker count is derived from the host's
// CPU core count via gopsutil, mirroring admin.go's own
// cpu.Info()-based core-count probe, falling back to runtime.NumCPU()
// if gopsutil can't read host info (e.g. inside a restricted
// container).
func New(n int, out *mq.Queue) *Scheduler {
	if n <= 0 {
		n = numWorkers()
	}

	s := &Scheduler{
		out:     out,
		tasks:   make(map[int]*taskInfo),
		barrier: NewBarrier(n + 1),
	}
	s.workers = make([]*worker.Worker, n)
	for i := range s.workers {
		s.workers[i] = worker.New(fmt.Sprintf("sched-worker-%d", i), out, nil)
	}
	return s
}

func numWorkers() int {
	info, err := cpu.Info()
	if err != nil || len(info) == 0 {
		return runtime.NumCPU()
	}
	cores := 0
	for _, c := range info {
		cores += int(c.Cores)
	}
	if cores <= 0 {
		return runtime.NumCPU()
	}
	return cores
}

// NumWorkers reports N, the scheduler worker count (get_num_workers,
// spec.md §4.I).
func (s *Scheduler) NumWorkers() int {
	return len(s.workers)
}

// BarrierWidth reports the cycle barrier's participant count, which
// must always equal NumWorkers()+1 (spec.md §3 invariant).
func (s *Scheduler) BarrierWidth() int {
	return s.barrier.N()
}

// Bind registers inst under handle, assigning it round-robin to one of
// the N scheduler workers, and transitions inst INIT->RUNNING (spec.md
// §3: "transitions INIT→RUNNING once bound to a tuner channel").
func (s *Scheduler) Bind(handle int, inst *inspector.Instance) error {
	s.mu.Lock()
	owner := s.next % len(s.workers)
	s.next++
	s.tasks[handle] = &taskInfo{handle: handle, inst: inst, owner: owner}
	s.mu.Unlock()

	return inst.Bind()
}

// unbind removes handle's task-info. Called only from inside a
// scheduler worker goroutine, per spec.md §3: "the binding is released
// inside the scheduler thread (no separate unbind call)".
func (s *Scheduler) unbind(handle int) {
	s.mu.Lock()
	delete(s.tasks, handle)
	s.mu.Unlock()
}

// Feed delivers one extracted-channel bulk to handle's bound inspector.
// It is called from the tuner's fan-out callback, so it must not block
// on inspector execution: the actual Feed call is queued onto the
// owning scheduler worker and runs there.
func (s *Scheduler) Feed(handle int, data []source.Sample) error {
	s.mu.Lock()
	t, ok := s.tasks[handle]
	s.mu.Unlock()
	if !ok {
		return ErrNotBound
	}

	w := s.workers[t.owner]
	w.Push(func(out *mq.Queue, private any) worker.Disposition {
		if t.inst.State() != inspector.StateRunning {
			s.unbind(handle)
			return worker.Done
		}
		result, err := t.inst.Impl.Feed(data)
		if err != nil {
			out.Write(KindError, SchedError{Handle: handle, Err: fmt.Errorf("sched: handle %d: %w", handle, err)})
			return worker.Done
		}
		if result != nil {
			out.Write(KindResult, Result{Handle: handle, Payload: result})
		}
		return worker.Done
	})
	return nil
}

// Cycle is called once per capture cycle by the source worker, after
// all of this cycle's Feed calls have been queued, to join the barrier
// (spec.md §4.I: "finally participates in the cycle barrier"). Every
// scheduler worker joins once per cycle via this same call queued onto
// its own input queue, and the source worker joins directly by calling
// Barrier.Wait itself — see Barrier().
func (s *Scheduler) Cycle() {
	for _, w := range s.workers {
		w.Push(func(out *mq.Queue, private any) worker.Disposition {
			s.barrier.Wait()
			return worker.Done
		})
	}
}

// Barrier exposes the cycle barrier so the source worker (the "+1"
// participant, spec.md §3) can join the same rendezvous.
func (s *Scheduler) Barrier() *Barrier {
	return s.barrier
}

// NumTasks reports the number of currently bound task-infos (test and
// telemetry helper).
func (s *Scheduler) NumTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Halt stops every scheduler worker and releases the barrier's current
// cycle, if any. Destroy semantics per spec.md §4.I: "Destroy halts all
// workers and releases the barrier."
func (s *Scheduler) Halt() {
	for _, w := range s.workers {
		w.Halt()
	}

	b := s.barrier
	b.mu.Lock()
	if b.waiting > 0 {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

// Destroy halts every scheduler worker and blocks until all of them
// have acknowledged, the Go analog of suscan_inspsched_destroy's join
// of its worker pool (spec.md §4.I: "Destroy halts all workers").
func (s *Scheduler) Destroy() {
	s.Halt()
	for _, w := range s.workers {
		<-w.Done()
	}
}
