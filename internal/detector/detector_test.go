package detector_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/detector"
	"github.com/cwsl/sdranalyzer/internal/source"
)

func toneBulk(n int, freqHz, sampleRate float64) []source.Sample {
	x := make([]source.Sample, n)
	for i := range x {
		phase := 2 * math.Pi * freqHz * float64(i) / sampleRate
		x[i] = complex(math.Cos(phase), math.Sin(phase))
	}
	return x
}

func TestSpectrumModeProducesPSDAndChannel(t *testing.T) {
	const n = 1024
	const rate = 1_000_000.0

	d, err := detector.New(detector.Params{
		Mode:             detector.ModeSpectrum,
		SampleRate:       rate,
		WindowSize:       n,
		IntervalPSD:      0, // every cycle
		IntervalChannels: 0,
		MinSNRdB:         3,
		MaxChannels:      8,
	})
	require.NoError(t, err)

	x := toneBulk(n, 100_000, rate)
	consumed, res, err := d.FeedBulk(x, rate)
	require.NoError(t, err)
	assert.Equal(t, n, consumed)

	require.NotNil(t, res.PSD)
	assert.Equal(t, n, len(res.PSD.Bins))
	assert.Greater(t, res.PSD.N0, 0.0)

	require.NotEmpty(t, res.Channels)
	assert.Greater(t, res.Channels[0].SNR, 1.0)
}

func TestSpectrumModeCadenceGating(t *testing.T) {
	const n = 512
	const rate = 1_000_000.0

	d, err := detector.New(detector.Params{
		Mode:             detector.ModeSpectrum,
		SampleRate:       rate,
		WindowSize:       n,
		IntervalPSD:      time.Hour,
		IntervalChannels: time.Hour,
	})
	require.NoError(t, err)

	x := toneBulk(n, 50_000, rate)
	_, first, err := d.FeedBulk(x, rate)
	require.NoError(t, err)
	assert.NotNil(t, first.PSD)

	_, second, err := d.FeedBulk(x, rate)
	require.NoError(t, err)
	assert.Nil(t, second.PSD)
	assert.Nil(t, second.Channels)
}

func TestAutocorrelationModeEstimatesBaud(t *testing.T) {
	const n = 2048
	const rate = 48_000.0
	const baud = 300.0

	x := make([]source.Sample, n)
	symbolLen := rate / baud
	for i := range x {
		symbol := math.Floor(float64(i) / symbolLen)
		sign := 1.0
		if int(symbol)%2 == 1 {
			sign = -1.0
		}
		x[i] = complex(sign, 0)
	}

	d, err := detector.New(detector.Params{
		Mode:       detector.ModeAutocorrelation,
		SampleRate: rate,
		WindowSize: n,
	})
	require.NoError(t, err)

	_, res, err := d.FeedBulk(x, rate)
	require.NoError(t, err)
	require.NotNil(t, res.Baud)
	assert.InDelta(t, baud, res.Baud.Baud, baud*0.5)
}

func TestFeedBulkRejectsShortInput(t *testing.T) {
	d, err := detector.New(detector.Params{
		Mode:       detector.ModeSpectrum,
		SampleRate: 1_000_000,
		WindowSize: 1024,
	})
	require.NoError(t, err)

	consumed, res, err := d.FeedBulk(make([]source.Sample, 10), 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Nil(t, res.PSD)
}
