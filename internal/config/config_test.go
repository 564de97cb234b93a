package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: file
  file:
    path: /tmp/capture.iq
    sample_rate: 48000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "channel", cfg.Analyzer.Mode)
	assert.Equal(t, 4, cfg.Analyzer.MaxBuffers)
	assert.Equal(t, "spectrum", cfg.Analyzer.Detector.Mode)
	assert.Equal(t, 1<<15, cfg.Analyzer.Detector.WindowSize)
	assert.Equal(t, 250, cfg.Analyzer.Detector.IntervalPSDMs)
	assert.Equal(t, 1000, cfg.Analyzer.Detector.IntervalChannelsMs)
	assert.Equal(t, 16, cfg.Analyzer.Detector.MaxChannels)
	assert.Equal(t, "linear", cfg.Analyzer.Sweep.Strategy)
	assert.Equal(t, "contiguous", cfg.Analyzer.Sweep.Partitioning)
	assert.Equal(t, "sdranalyzer", cfg.MQTT.TopicPrefix)
	assert.Equal(t, ":9090", cfg.Prometheus.Listen)
}

func TestLoadConfigRejectsMissingFilePath(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: file
  file:
    sample_rate: 48000
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownSourceKind(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: bogus
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRequiresSweepRangeInWideSpectrumMode(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: file
  file:
    path: /tmp/capture.iq
    sample_rate: 48000
analyzer:
  mode: wide_spectrum
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigAcceptsMulticastSource(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: multicast
  multicast:
    data_addr: 239.1.2.3:5004
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "239.1.2.3:5004", cfg.Source.Multicast.DataAddr)
}

func TestValidateRequiresMQTTBrokerWhenEnabled(t *testing.T) {
	cfg := &Config{
		Source: SourceConfig{Kind: "file", File: FileSourceConfig{Path: "/tmp/x", SampleRate: 48000}},
		MQTT:   MQTTConfig{Enabled: true},
	}
	cfg.applyDefaults()
	err := cfg.Validate()
	assert.ErrorContains(t, err, "mqtt.broker")
}

func TestBuildAnalyzerConfigTranslatesEnums(t *testing.T) {
	cfg := &Config{
		Analyzer: AnalyzerConfig{
			Mode: "wide_spectrum",
			Detector: DetectorConfig{
				Mode:       "autocorrelation",
				WindowSize: 4096,
			},
			Sweep: SweepConfig{
				MinFreq:       0,
				MaxFreq:       1e6,
				Strategy:      "random",
				Partitioning:  "overlapped",
				FFTMinSamples: 4096,
			},
		},
	}

	ac, err := cfg.BuildAnalyzerConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, int(ac.Mode)) // ModeWideSpectrum
	assert.Equal(t, 1, int(ac.Detector.Mode)) // ModeAutocorrelation
	assert.Equal(t, 1, int(ac.Sweep.Strategy)) // SweepRandom
	assert.Equal(t, 1, int(ac.Sweep.Partitioning)) // PartitionOverlapped
	assert.Equal(t, 4096, ac.Detector.WindowSize)
}

func TestBuildAnalyzerConfigRejectsUnknownMode(t *testing.T) {
	cfg := &Config{Analyzer: AnalyzerConfig{Mode: "bogus"}}
	_, err := cfg.BuildAnalyzerConfig(nil)
	assert.Error(t, err)
}
