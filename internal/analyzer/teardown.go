package analyzer

// Close tears down the analyzer (spec.md §4.J Teardown, steps 1-10).
// It is idempotent and safe to call from any goroutine; it blocks until
// every owned thread has joined.
func (a *Analyzer) Close() error {
	if !a.closing.CompareAndSwap(false, true) {
		return nil
	}

	// 1. Force source EOS.
	a.src.Cancel()
	a.srcCancel()
	a.ReqHalt()

	// 2. Join control thread.
	<-a.controlDone

	// 3. Halt source worker, slow worker (each by urgent HALT and join).
	a.haltAllWorkers()

	// 4. Destroy inspector scheduler; destroy barrier and sched-lock
	// (the barrier and sched-lock are Go values with no explicit
	// destructor; Destroy's join is the only externally-visible effect
	// spec.md names).
	a.sched.Destroy()

	// 5. Destroy detector, loop-mutex, inspector-list mutex, tuner (all
	// plain Go values; dropping the references is the destructor).

	// 6. Drain and free all overridable requests.
	a.freeOverridables()

	// 7. Free read buffer.
	a.bufPool.Close()

	// 8. Destroy every inspector in the table, free the table.
	a.invMu.Lock()
	for _, inst := range a.inspectors {
		if inst == nil {
			continue
		}
		_ = inst.Impl.Close()
	}
	a.inspectors = nil
	a.invMu.Unlock()

	// 9. Destroy source, slow-worker data, throttle mutex, baseband
	// filter list.
	err := a.src.Close()
	a.filtersMu.Lock()
	a.filters = nil
	a.filtersMu.Unlock()

	// 10. Consume and finalize input MQ.
	a.inMQ.Finalize(a.disposeInput)
	a.outMQ.Close()

	a.lifecycle.Store(int32(stateStopped))
	return err
}
