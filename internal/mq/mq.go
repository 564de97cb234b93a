// Package mq implements the typed message queue used to multiplex control
// and data traffic between the analyzer's control thread, its workers and
// its callers.
//
// A Queue is a FIFO of (Kind, Payload) pairs with one extra operation that
// a plain channel cannot express directly: urgent writes that jump the
// queue so a HALT is always observed before any previously-queued,
// non-urgent message. Go channels have no "push to front", so the queue is
// built on a doubly linked list (container/list) guarded by a mutex and a condition
// variable, the same shape as the teacher's map-guarded structures
// (radiod_status.go's FrontendStatusTracker) but with a cond instead of a
// done channel because readers must block, not poll.
package mq

import (
	"container/list"
	"sync"
)

// Kind identifies the type of a queued message.
type Kind uint32

// Message is one entry in a Queue.
type Message struct {
	Kind    Kind
	Payload any
}

// DisposeFunc releases a payload that was never consumed by a reader, e.g.
// because the queue was torn down with messages still pending.
type DisposeFunc func(kind Kind, payload any)

// Queue is a typed FIFO with blocking Read, non-blocking Poll, and
// urgent-insert Write. The zero value is not usable; use New.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries *list.List
	closed  bool
}

// New creates an empty, open queue.
func New() *Queue {
	q := &Queue{entries: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Write enqueues a message at the tail. It never blocks.
func (q *Queue) Write(kind Kind, payload any) {
	q.mu.Lock()
	q.entries.PushBack(Message{Kind: kind, Payload: payload})
	q.mu.Unlock()
	q.cond.Signal()
}

// WriteUrgent enqueues a message at the head, ahead of any message already
// pending. Any number of non-urgent writes following an urgent write will
// still be dequeued after it.
func (q *Queue) WriteUrgent(kind Kind, payload any) {
	q.mu.Lock()
	q.entries.PushFront(Message{Kind: kind, Payload: payload})
	q.mu.Unlock()
	q.cond.Signal()
}

// Read blocks until a message is available and returns it. It returns
// ok=false only if the queue has been closed with no pending messages.
func (q *Queue) Read() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.entries.Len() == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.entries.Len() == 0 {
		return Message{}, false
	}

	front := q.entries.Front()
	q.entries.Remove(front)
	return front.Value.(Message), true
}

// Poll returns the next message without blocking. ok is false if the
// queue is currently empty.
func (q *Queue) Poll() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.entries.Len() == 0 {
		return Message{}, false
	}

	front := q.entries.Front()
	q.entries.Remove(front)
	return front.Value.(Message), true
}

// Close wakes every blocked Read with ok=false. Messages already pending
// are still delivered by further Poll/Read calls before the empty signal
// is returned; Close does not discard them. Callers tearing down a queue
// should drain with Poll (or Finalize) after Close.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Finalize drains every remaining message, disposing each with dispose,
// and marks the queue closed. It is the Go analog of
// suscan_analyzer_consume_mq + suscan_mq_finalize.
func (q *Queue) Finalize(dispose DisposeFunc) {
	q.Close()
	for {
		msg, ok := q.Poll()
		if !ok {
			return
		}
		if dispose != nil {
			dispose(msg.Kind, msg.Payload)
		}
	}
}

// Len reports the number of messages currently pending. Intended for
// tests and metrics only; the value is stale the instant it is returned.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}
