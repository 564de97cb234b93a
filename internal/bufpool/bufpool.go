// Package bufpool implements a bounded pool of reusable complex-sample
// buffers with back-pressure, the Go analog of suscan's sample buffer
// pool (analyzer/pool.h). Buffers are acquired by the capture path and
// released once consumed by the detector/tuner fan-out; when the pool is
// saturated, Acquire blocks until a buffer is returned instead of growing
// without bound.
package bufpool

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Acquire when the pool has been shut down while
// a caller was waiting for a free buffer.
var ErrClosed = errors.New("bufpool: pool closed")

// Sample is a single complex baseband sample.
type Sample = complex128

// Buffer is a fixed-size, reusable sample buffer checked out from a Pool.
type Buffer struct {
	Data []Sample

	pool     *Pool
	acquired bool
	region   io.Closer // non-nil only for vm_circularity buffers
}

// Release returns the buffer to its owning pool, making it available to
// the next Acquire/TryAcquire caller. Releasing a buffer twice is a no-op.
func (b *Buffer) Release() {
	b.pool.give(b)
}

// Pool is a bounded set of fixed-size sample buffers, lazily allocated up
// to maxBuffers, then recycled through a free list gated by a condition
// variable (the Go analog of the pool's free-MQ in the original design;
// a channel would work for the happy path but can't be "woken with a
// poisoned result" the way a cond broadcast plus a closed flag can).
type Pool struct {
	allocSize  int
	maxBuffers int
	vmBacked   bool

	mu        sync.Mutex
	cond      *sync.Cond
	allocated int
	free      []*Buffer
	closed    bool
}

// New creates a pool of buffers of allocSize samples each, growing lazily
// up to maxBuffers outstanding allocations.
func New(allocSize, maxBuffers int) *Pool {
	p := &Pool{allocSize: allocSize, maxBuffers: maxBuffers}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// NewVMCircular creates a pool identical to New except that every buffer is
// backed by a real anonymous mmap region (mirror_linux.go) rather than a
// make([]Sample, n) heap allocation, so large buffers are demand-paged and
// those on the free list are unmapped when the pool is closed rather than
// left to the garbage collector (spec.md §4.B's vm_circularity option). On
// platforms without the mmap path (mirror_other.go), buffers fall back to a
// plain heap allocation with the same API.
func NewVMCircular(allocSize, maxBuffers int) *Pool {
	p := New(allocSize, maxBuffers)
	p.vmBacked = true
	return p
}

func (p *Pool) newBuffer() (*Buffer, error) {
	if !p.vmBacked {
		return &Buffer{Data: make([]Sample, p.allocSize), pool: p}, nil
	}
	data, region, err := allocVMBuffer(p.allocSize)
	if err != nil {
		return nil, err
	}
	return &Buffer{Data: data, pool: p, region: region}, nil
}

// Acquire returns a free buffer, allocating a new one until maxBuffers is
// reached, then blocking until one is released. It returns ErrClosed if
// the pool is closed while the caller is waiting.
func (p *Pool) Acquire() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			return nil, ErrClosed
		}

		if n := len(p.free); n > 0 {
			buf := p.free[n-1]
			p.free = p.free[:n-1]
			buf.acquired = true
			return buf, nil
		}

		if p.allocated < p.maxBuffers {
			buf, err := p.newBuffer()
			if err != nil {
				return nil, err
			}
			p.allocated++
			buf.acquired = true
			return buf, nil
		}

		p.cond.Wait()
	}
}

// TryAcquire returns a free buffer without blocking, or nil if none is
// available right now.
func (p *Pool) TryAcquire() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free = p.free[:n-1]
		buf.acquired = true
		return buf
	}

	if p.allocated < p.maxBuffers {
		buf, err := p.newBuffer()
		if err != nil {
			return nil
		}
		p.allocated++
		buf.acquired = true
		return buf
	}

	return nil
}

func (p *Pool) give(buf *Buffer) {
	p.mu.Lock()
	if !buf.acquired {
		p.mu.Unlock()
		return
	}
	buf.acquired = false
	p.free = append(p.free, buf)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close wakes every blocked Acquire with ErrClosed, the equivalent of
// placing a HALT message on the pool's free-MQ. Buffers already checked
// out remain valid to use and Release; Close only stops new acquisitions.
// Buffers already sitting in the free list are unmapped immediately for a
// vm_circularity pool rather than left for the garbage collector.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	free := p.free
	p.free = nil
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, buf := range free {
		if buf.region != nil {
			buf.region.Close()
		}
	}
}

// Stats reports the pool's at-rest invariant: Acquired + Free == Allocated
// <= MaxBuffers (spec.md §8, "sample-buffer pools at rest").
type Stats struct {
	Allocated int
	Free      int
	Acquired  int
	Max       int
}

// Stats returns a snapshot of the pool's occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Allocated: p.allocated,
		Free:      len(p.free),
		Acquired:  p.allocated - len(p.free),
		Max:       p.maxBuffers,
	}
}
