package recorder

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/source"
)

func TestRecorderWritesRawLittleEndianIQ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.iq")

	r, err := New(Config{Path: path})
	require.NoError(t, err)

	samples := []source.Sample{complex(1.5, -2.5), complex(0, 0), complex(-3.25, 4.0)}
	r.Write(samples)
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, len(samples)*8)

	for i, s := range samples {
		re := math.Float32frombits(binary.LittleEndian.Uint32(data[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:]))
		assert.Equal(t, float32(real(s)), re)
		assert.Equal(t, float32(imag(s)), im)
	}
}

func TestRecorderCompressedRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.iq.zst")

	r, err := New(Config{Path: path, Compressed: true})
	require.NoError(t, err)

	samples := []source.Sample{complex(1, 2), complex(3, 4)}
	r.Write(samples)
	require.NoError(t, r.Close())
	assert.EqualValues(t, len(samples)*8, r.BytesWritten())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	raw := make([]byte, len(samples)*8)
	_, err = io.ReadFull(dec, raw)
	require.NoError(t, err)

	re := math.Float32frombits(binary.LittleEndian.Uint32(raw[0:]))
	im := math.Float32frombits(binary.LittleEndian.Uint32(raw[4:]))
	assert.Equal(t, float32(1), re)
	assert.Equal(t, float32(2), im)
}

func TestRecorderBytesWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.iq")

	r, err := New(Config{Path: path})
	require.NoError(t, err)
	defer r.Close()

	r.Write([]source.Sample{1, 2, 3})
	assert.EqualValues(t, 24, r.BytesWritten())
	r.Write([]source.Sample{4})
	assert.EqualValues(t, 32, r.BytesWritten())
}
