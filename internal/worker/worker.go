// Package worker implements a single dedicated goroutine driven by an
// mq.Queue of callback tasks, the Go analog of suscan's generic worker
// thread used for both the source-worker and slow-worker roles of the
// local analyzer.
//
// A Task is invoked repeatedly: returning Continue re-enqueues it on the
// worker's own input queue (a self-driven tick, e.g. the source worker
// re-posting its own capture callback every cycle), returning Done drops
// it. This mirrors the teacher's goroutine-plus-stopChan idiom in
// spectrum.go, generalized to carry arbitrary typed callbacks instead of
// a single fixed loop body.
package worker

import (
	"log"

	"github.com/cwsl/sdranalyzer/internal/mq"
)

// Disposition is the result of running one Task step.
type Disposition bool

const (
	// Done means the task record is finished and should be discarded.
	Done Disposition = false
	// Continue means the task should be re-enqueued for another step.
	Continue Disposition = true
)

// Task is one unit of work accepted by a Worker's input queue. out is the
// worker's output queue (status/results flow there); private is the
// Worker's own per-instance data, set at construction.
type Task func(out *mq.Queue, private any) Disposition

const (
	kindCallback mq.Kind = iota
	// KindHalt is the message kind written to a worker's output queue to
	// acknowledge a processed HALT.
	KindHalt
)

// HaltPayload is written to the output queue when a HALT is acknowledged,
// carrying the worker's own identity so a caller juggling several workers
// can tell which one just stopped.
type HaltPayload struct {
	Worker *Worker
}

// Worker is a dedicated goroutine that drains its input queue and runs
// each Task it receives, reposting self-continuing tasks and exiting
// cleanly on HALT.
type Worker struct {
	name    string
	in      *mq.Queue
	out     *mq.Queue
	private any
	done    chan struct{}
}

// New starts a worker goroutine immediately. name is used only for log
// messages. private is passed to every Task invocation, the Go analog of
// the worker's opaque per-instance pointer (e.g. the source adapter for
// the source worker, the source adapter again for the slow worker).
func New(name string, out *mq.Queue, private any) *Worker {
	w := &Worker{
		name:    name,
		in:      mq.New(),
		out:     out,
		private: private,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Push enqueues fn as a callback task to run on the worker goroutine.
func (w *Worker) Push(fn Task) {
	w.in.Write(kindCallback, fn)
}

// Halt requests the worker stop after its current task, if any, finishes.
// It does not block; callers that need to know the worker has actually
// stopped should read from Out() for the halt acknowledgement or select
// on Done().
func (w *Worker) Halt() {
	w.in.WriteUrgent(KindHalt, nil)
}

// Done returns a channel that is closed once the worker goroutine has
// returned, after acknowledging HALT on the output queue.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run() {
	defer close(w.done)

	for {
		msg, ok := w.in.Read()
		if !ok {
			return
		}

		switch msg.Kind {
		case KindHalt:
			if w.out != nil {
				w.out.Write(KindHalt, HaltPayload{Worker: w})
			}
			return

		case kindCallback:
			fn, valid := msg.Payload.(Task)
			if !valid {
				log.Printf("worker %s: dropped malformed callback task", w.name)
				continue
			}
			if fn(w.out, w.private) == Continue {
				w.in.Write(kindCallback, fn)
			}

		default:
			log.Printf("worker %s: dropped message of unknown kind %d", w.name, msg.Kind)
		}
	}
}
