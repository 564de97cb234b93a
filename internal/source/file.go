package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FileConfig configures a FileSource: a non-realtime source that reads
// raw complex64 little-endian IQ samples from disk, optionally
// zstd-compressed (module K, Capture Recorder, SPEC_FULL.md).
type FileConfig struct {
	Path       string
	SampleRate float64
	Compressed bool
	// Loop replays the file from the start on EOF instead of emitting
	// ReadEOS, useful for soak-testing the analyzer without a live feed.
	Loop bool
}

// FileSource implements Source by reading a capture file, standing in
// for suscan's file source (spec.md §4.E names the capability only;
// original_source/ ships no concrete file source, so this is grounded
// on the interface contract plus the teacher's `<Component>: `
// log-prefix and `fmt.Errorf("...: %w", err)` wrapping conventions used
// throughout decoder_spawner.go). Pacing a replay to its nominal sample
// rate is the analyzer's own throttle's job (spec.md §4.D models the
// throttle as a single analyzer-owned component); Read simply serves
// however many samples the caller's buffer asks for.
type FileSource struct {
	cfg FileConfig

	mu        sync.Mutex
	f         *os.File
	reader    io.Reader
	zstdDec   *zstd.Decoder
	cancelled bool
	lastRead  time.Time

	info Info
}

const bytesPerSample = 8 // complex64: two float32s

// NewFileSource opens the capture file and prepares the decompression
// pipeline if configured, but does not yet start delivering samples.
func NewFileSource(cfg FileConfig) (*FileSource, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open capture file: %w", err)
	}

	fs := &FileSource{
		cfg: cfg,
		f:   f,
		info: Info{
			Permissions:      PermSeek,
			MTU:              65536,
			SourceSampleRate: cfg.SampleRate,
			EffectiveRate:    cfg.SampleRate,
			SourceStart:      time.Now(),
			APIVersion:       "1.0.0",
			RealTime:         false,
		},
	}

	if cfg.Compressed {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("source: init zstd decoder: %w", err)
		}
		fs.zstdDec = dec
		fs.reader = dec
	} else {
		fs.reader = f
	}

	return fs, nil
}

// Start marks the source active; file sources have nothing to start
// asynchronously, reads happen synchronously under Read.
func (fs *FileSource) Start(ctx context.Context) error {
	log.Printf("FileSource: starting capture replay of %s at %.0f sps", fs.cfg.Path, fs.cfg.SampleRate)
	fs.mu.Lock()
	fs.lastRead = time.Now()
	fs.mu.Unlock()
	return nil
}

// Cancel sets the force-EOS flag; the next Read returns ReadEOS.
func (fs *FileSource) Cancel() {
	fs.mu.Lock()
	fs.cancelled = true
	fs.mu.Unlock()
}

// Read fills buf with up to len(buf) samples; pacing is the analyzer's
// responsibility (its throttle gates how many samples it asks for
// before ever calling Read), so buf already carries only as many slots
// as the replay rate currently authorizes.
func (fs *FileSource) Read(buf []Sample) ReadResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cancelled {
		return ReadResult{Kind: ReadEOS}
	}

	raw := make([]byte, len(buf)*bytesPerSample)
	n, err := io.ReadFull(fs.reader, raw)
	samplesRead := n / bytesPerSample

	for i := 0; i < samplesRead; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample+4:]))
		buf[i] = complex(float64(re), float64(im))
	}
	fs.lastRead = time.Now()

	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ReadResult{Kind: ReadError, Count: samplesRead, Err: fmt.Errorf("source: read capture file: %w", err)}
	}

	if (err == io.EOF || err == io.ErrUnexpectedEOF) && samplesRead == 0 {
		if fs.cfg.Loop {
			if _, seekErr := fs.f.Seek(0, io.SeekStart); seekErr != nil {
				return ReadResult{Kind: ReadError, Err: fmt.Errorf("source: loop seek: %w", seekErr)}
			}
			if fs.zstdDec != nil {
				if resetErr := fs.zstdDec.Reset(fs.f); resetErr != nil {
					return ReadResult{Kind: ReadError, Err: fmt.Errorf("source: loop zstd reset: %w", resetErr)}
				}
			}
			return ReadResult{Kind: ReadTimeout}
		}
		return ReadResult{Kind: ReadEOS}
	}

	return ReadResult{Kind: ReadOK, Count: samplesRead}
}

// GetTime reports the wall-clock time of the most recent Read call.
func (fs *FileSource) GetTime() time.Time {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastRead
}

// Info returns the source's capability snapshot.
func (fs *FileSource) Info() Info {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.info
}

// Seek repositions the file to a sample offset. Implements Seekable.
func (fs *FileSource) Seek(sampleOffset int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.zstdDec != nil {
		return fmt.Errorf("source: %w: seek unsupported on compressed captures", ErrUnsupported)
	}

	if _, err := fs.f.Seek(sampleOffset*bytesPerSample, io.SeekStart); err != nil {
		return fmt.Errorf("source: seek: %w", err)
	}
	return nil
}

// MaxSize reports the capture file's sample count. Implements Seekable.
func (fs *FileSource) MaxSize() int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	st, err := fs.f.Stat()
	if err != nil {
		return 0
	}
	return st.Size() / bytesPerSample
}

// File sources have no live hardware to mutate; every mutator below is a
// no-op success except throttle-affecting ones, which the analyzer
// drives through internal/throttle directly rather than through Source.

func (fs *FileSource) SetFrequency(hz float64) error      { return nil }
func (fs *FileSource) SetGain(name string, v float64) error { return nil }
func (fs *FileSource) SetAntenna(name string) error        { return nil }
func (fs *FileSource) SetBandwidth(hz float64) error        { return nil }
func (fs *FileSource) SetPPM(ppm float64) error             { return nil }
func (fs *FileSource) SetDCRemove(enabled bool) error        { return nil }
func (fs *FileSource) SetAGC(enabled bool) error             { return nil }

// Close releases the underlying file handle and decompressor.
func (fs *FileSource) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.zstdDec != nil {
		fs.zstdDec.Close()
	}
	if err := fs.f.Close(); err != nil {
		return fmt.Errorf("source: close capture file: %w", err)
	}
	return nil
}
