package source_test

import (
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/source"
)

func writeRawCapture(t *testing.T, samples []complex64) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "capture-*.iq")
	require.NoError(t, err)
	defer f.Close()

	for _, s := range samples {
		var b [8]byte
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(imag(s)))
		_, err := f.Write(b[:])
		require.NoError(t, err)
	}
	return f.Name()
}

func TestFileSourceReadsSamplesInOrder(t *testing.T) {
	path := writeRawCapture(t, []complex64{1 + 2i, 3 - 4i, 0.5 + 0.25i})

	fs, err := source.NewFileSource(source.FileConfig{Path: path, SampleRate: 1_000_000})
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Start(nil))

	buf := make([]source.Sample, 3)
	var total int
	for total < 3 {
		res := fs.Read(buf[total:])
		if res.Kind == source.ReadTimeout {
			continue
		}
		require.Equal(t, source.ReadOK, res.Kind)
		total += res.Count
	}

	assert.InDelta(t, 1, real(buf[0]), 1e-5)
	assert.InDelta(t, 2, imag(buf[0]), 1e-5)
	assert.InDelta(t, 3, real(buf[1]), 1e-5)
	assert.InDelta(t, -4, imag(buf[1]), 1e-5)
}

func TestFileSourceEOSAfterLastSample(t *testing.T) {
	path := writeRawCapture(t, []complex64{1 + 1i})

	fs, err := source.NewFileSource(source.FileConfig{Path: path, SampleRate: 1_000_000})
	require.NoError(t, err)
	defer fs.Close()
	require.NoError(t, fs.Start(nil))

	buf := make([]source.Sample, 1)
	for {
		res := fs.Read(buf)
		if res.Kind == source.ReadTimeout {
			continue
		}
		require.Equal(t, source.ReadOK, res.Kind)
		require.Equal(t, 1, res.Count)
		break
	}

	for {
		res := fs.Read(buf)
		if res.Kind == source.ReadTimeout {
			continue
		}
		assert.Equal(t, source.ReadEOS, res.Kind)
		break
	}
}

func TestFileSourceCancelForcesEOS(t *testing.T) {
	path := writeRawCapture(t, []complex64{1 + 1i, 2 + 2i})

	fs, err := source.NewFileSource(source.FileConfig{Path: path, SampleRate: 1_000_000})
	require.NoError(t, err)
	defer fs.Close()
	require.NoError(t, fs.Start(nil))

	fs.Cancel()

	buf := make([]source.Sample, 1)
	res := fs.Read(buf)
	assert.Equal(t, source.ReadEOS, res.Kind)
}

func TestFileSourceSeekAndMaxSize(t *testing.T) {
	path := writeRawCapture(t, []complex64{1 + 1i, 2 + 2i, 3 + 3i})

	fs, err := source.NewFileSource(source.FileConfig{Path: path, SampleRate: 1_000_000})
	require.NoError(t, err)
	defer fs.Close()

	assert.Equal(t, int64(3), fs.MaxSize())

	require.NoError(t, fs.Seek(2))
	require.NoError(t, fs.Start(nil))

	buf := make([]source.Sample, 1)
	for {
		res := fs.Read(buf)
		if res.Kind == source.ReadTimeout {
			continue
		}
		require.Equal(t, source.ReadOK, res.Kind)
		break
	}
	assert.InDelta(t, 3, real(buf[0]), 1e-5)
}
