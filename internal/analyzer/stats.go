package analyzer

import "github.com/cwsl/sdranalyzer/internal/bufpool"

// Stats is a point-in-time snapshot of the analyzer's internal
// occupancy counters, exposed read-only for telemetry sinks (module
// M, SPEC_FULL.md) so they never reach into the analyzer's internals.
type Stats struct {
	BufferPool       bufpool.Stats
	SchedWorkers     int
	SchedBoundTasks  int
	NumInspectors    int
	SampleRate       float64
	MeasuredSampRate float64
}

// Stats returns a snapshot for metrics export. Each field is read
// through its own existing accessor/lock; GetSampRate takes the loop
// mutex, so a call can wait for an in-flight detector feed to finish.
func (a *Analyzer) Stats() Stats {
	return Stats{
		BufferPool:       a.bufPool.Stats(),
		SchedWorkers:     a.sched.NumWorkers(),
		SchedBoundTasks:  a.sched.NumTasks(),
		NumInspectors:    a.NumInspectors(),
		SampleRate:       a.GetSampRate(),
		MeasuredSampRate: a.GetMeasuredSampRate(),
	}
}
