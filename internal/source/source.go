// Package source defines the Source Adapter capability set (spec.md
// §4.E): a polymorphic front-end abstraction the Local Analyzer drives
// without caring whether samples come from a file or a live radio.
package source

import (
	"context"
	"errors"
	"time"
)

// Sample is a single complex baseband sample.
type Sample = complex128

// ReadResultKind classifies why Read returned fewer samples than asked,
// or zero.
type ReadResultKind int

const (
	// ReadOK means count > 0 valid samples were written into buf.
	ReadOK ReadResultKind = iota
	// ReadTimeout means no samples were available within the adapter's
	// internal retry budget; the source worker should try again.
	ReadTimeout
	// ReadOverflow means the adapter's internal ring dropped samples
	// because the reader fell behind; already-retried internally.
	ReadOverflow
	// ReadUnderflow means the live source produced fewer samples than a
	// full MTU in one delivery; already retried internally.
	ReadUnderflow
	// ReadEOS means the source is exhausted (end of capture file, or
	// Cancel was called) and no further samples will ever arrive.
	ReadEOS
	// ReadError means a hard, non-retryable error occurred; Err() on the
	// returned ReadResult carries detail.
	ReadError
)

// ReadResult is the outcome of one Read call.
type ReadResult struct {
	Kind  ReadResultKind
	Count int
	Err   error
}

// Permission bits gate which mutators are legal against a given source,
// mirroring spec.md §6's "permissions bitset on the source info".
type Permission uint32

const (
	PermSetFreq Permission = 1 << iota
	PermSetGain
	PermSetAntenna
	PermSetBandwidth
	PermSetPPM
	PermSetDCRemove
	PermSetAGC
	PermSeek
)

// Info describes a source's static and dynamic capabilities, reported to
// the analyzer once at open and refreshed as effective rate is learned.
type Info struct {
	Permissions       Permission
	MTU               int
	SourceSampleRate  float64
	EffectiveRate     float64
	MeasuredRate      float64
	SourceStart       time.Time
	APIVersion        string // capability version string, source.go negotiates via go-version
	RealTime          bool
}

var (
	// ErrClosed is returned by Read/mutators once the source has been
	// cancelled or closed.
	ErrClosed = errors.New("source: closed")
	// ErrUnsupported is returned when a mutator is invoked against a
	// source whose Info.Permissions does not grant it.
	ErrUnsupported = errors.New("source: operation not supported by this source")
)

// Source is the capability set every concrete front-end implements:
// open/start/cancel/read/get_time plus the mutator set named in
// spec.md §4.E. Open is performed by the constructor of each concrete
// type (FileSource, MulticastSource); this interface covers the
// lifecycle from Start onward.
type Source interface {
	// Start begins delivering samples; must be called once before Read.
	Start(ctx context.Context) error

	// Cancel sets a force-EOS flag and deactivates the underlying
	// stream; subsequent Read calls drain then return ReadEOS.
	Cancel()

	// Read fills buf with up to len(buf) samples. A read that yields
	// nothing within the adapter's own wait returns ReadTimeout, which
	// the caller retries, as it does ReadOverflow/ReadUnderflow; hard
	// errors and EOS end the stream.
	Read(buf []Sample) ReadResult

	// GetTime returns the source's notion of the current wall-clock
	// time for the most recently delivered sample.
	GetTime() time.Time

	// Info returns a snapshot of the source's capability/rate info.
	Info() Info

	SetFrequency(hz float64) error
	SetGain(name string, val float64) error
	SetAntenna(name string) error
	SetBandwidth(hz float64) error
	SetPPM(ppm float64) error
	SetDCRemove(enabled bool) error
	SetAGC(enabled bool) error

	// Close releases all resources. Idempotent.
	Close() error
}

// Seekable is optionally implemented by sources that support seeking
// (spec.md §4.E: "optional seek, max_size for file sources").
type Seekable interface {
	Seek(sampleOffset int64) error
	MaxSize() int64
}
