package analyzer

import "errors"

// Sentinel errors for the analyzer's protocol-violation class (spec.md
// §7: "Protocol violations ... rejected without side effects").
var (
	// ErrBadHandle is returned when an inspector handle is out of
	// range or refers to a slot never opened.
	ErrBadHandle = errors.New("analyzer: inspector handle out of range")
	// ErrNotRunning is returned when an operation requires an
	// inspector in state RUNNING but it is not.
	ErrNotRunning = errors.New("analyzer: inspector not in RUNNING state")
	// ErrWrongMode is returned when a wide-spectrum-only mutator is
	// invoked against a channel-mode analyzer, or vice versa.
	ErrWrongMode = errors.New("analyzer: operation not valid in current mode")
	// ErrUnsupported is returned when a mutator is rejected by the
	// source's permission bitset (spec.md §6).
	ErrUnsupported = errors.New("analyzer: operation not permitted by source")
	// ErrClosed is returned by Write/mutators once the analyzer has
	// begun or finished teardown.
	ErrClosed = errors.New("analyzer: closed")
	// ErrSweepRange is returned at construction when a wide-spectrum
	// plan's range is narrower than one acquisition (spec.md §4.J
	// step 4).
	ErrSweepRange = errors.New("analyzer: wide-spectrum range must be >= sample rate")
)
