// Package recorder implements the Capture Recorder (module K,
// SPEC_FULL.md): the write-side counterpart of internal/source's
// FileSource, tapping an analyzer's baseband filter chain to persist
// raw IQ to disk for later offline replay. Grounded on
// decoder_spawner.go's file-lifecycle conventions (open once at
// construction, close explicitly, wrap every I/O error with
// fmt.Errorf("...: %w", err)) and internal/source/file.go's wire
// format (complex64, little-endian, optional zstd).
package recorder

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/cwsl/sdranalyzer/internal/source"
)

// Config configures a Recorder.
type Config struct {
	Path       string
	Compressed bool
}

// Recorder writes every bulk it is handed to disk as raw complex64
// little-endian IQ, the same wire format internal/source.FileSource
// reads back.
type Recorder struct {
	mu      sync.Mutex
	f       *os.File
	w       *zstd.Encoder
	scratch []byte
	n       int64
}

// New creates (or truncates) the capture file at cfg.Path and opens
// the zstd encoder if cfg.Compressed is set.
func New(cfg Config) (*Recorder, error) {
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create capture file: %w", err)
	}

	r := &Recorder{f: f}
	if cfg.Compressed {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("recorder: init zstd encoder: %w", err)
		}
		r.w = enc
	}

	log.Printf("recorder: writing capture to %s (compressed=%v)", cfg.Path, cfg.Compressed)
	return r, nil
}

// Write encodes samples as raw complex64 little-endian IQ and appends
// them to the capture file. Write is safe to install directly as an
// analyzer.FilterFunc: it never mutates samples.
func (r *Recorder) Write(samples []source.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	need := len(samples) * 8
	if cap(r.scratch) < need {
		r.scratch = make([]byte, need)
	}
	buf := r.scratch[:need]

	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(real(s))))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(imag(s))))
	}

	var out interface{ Write([]byte) (int, error) } = r.f
	if r.w != nil {
		out = r.w
	}
	n, err := out.Write(buf)
	if err != nil {
		log.Printf("recorder: write capture bulk: %v", err)
		return
	}
	r.n += int64(n)
}

// BytesWritten reports the total number of raw bytes written so far
// (pre-compression byte count when zstd is enabled).
func (r *Recorder) BytesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Close flushes and closes the capture file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		if err := r.w.Close(); err != nil {
			r.f.Close()
			return fmt.Errorf("recorder: close zstd encoder: %w", err)
		}
	}
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("recorder: close capture file: %w", err)
	}
	return nil
}
