package inspector_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/inspector"
	"github.com/cwsl/sdranalyzer/internal/source"
)

func TestAudioInspectorFeedProducesRTPPacket(t *testing.T) {
	ai := inspector.NewAudioInspector(inspector.DemodAM, 8000, 42)

	data := make([]source.Sample, 160)
	for i := range data {
		data[i] = complex(math.Sin(float64(i)*0.1), 0)
	}

	out, err := ai.Feed(data)
	require.NoError(t, err)
	require.NotNil(t, out)

	res, ok := out.(inspector.AudioResult)
	require.True(t, ok)
	require.Len(t, res.Packets, 1)
	assert.Equal(t, uint32(42), res.Packets[0].Header.SSRC)
	assert.Equal(t, "pcm16", res.Codec)
	assert.NotEmpty(t, res.Packets[0].Payload)
}

func TestAudioInspectorSequenceNumberIncrements(t *testing.T) {
	ai := inspector.NewAudioInspector(inspector.DemodFM, 8000, 1)
	data := make([]source.Sample, 80)

	out1, err := ai.Feed(data)
	require.NoError(t, err)
	out2, err := ai.Feed(data)
	require.NoError(t, err)

	seq1 := out1.(inspector.AudioResult).Packets[0].Header.SequenceNumber
	seq2 := out2.(inspector.AudioResult).Packets[0].Header.SequenceNumber
	assert.Equal(t, seq1+1, seq2)
}

func TestAudioInspectorFeedEmptyReturnsNil(t *testing.T) {
	ai := inspector.NewAudioInspector(inspector.DemodAM, 8000, 1)
	out, err := ai.Feed(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
