// Package config loads the analyzer's on-disk configuration: which
// source to open, how the Local Analyzer should be built, and which
// telemetry sinks (if any) to wire against its output queue. The
// layout mirrors config.go's one-root-struct-of-nested-XxxConfig-
// structs convention, yaml:"snake_case" tags and all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// SourceConfig selects and configures one of the two Source
// implementations (module K's FileSource or module L's
// MulticastSource; spec.md §1's "already-open Source" is supplied by
// whichever of these this section names).
type SourceConfig struct {
	// Kind is "file" or "multicast".
	Kind string `yaml:"kind"`

	File      FileSourceConfig      `yaml:"file"`
	Multicast MulticastSourceConfig `yaml:"multicast"`
}

// FileSourceConfig configures internal/source.FileConfig.
type FileSourceConfig struct {
	Path       string  `yaml:"path"`
	SampleRate float64 `yaml:"sample_rate"`
	Compressed bool    `yaml:"compressed"`
	Loop       bool    `yaml:"loop"`
}

// MulticastSourceConfig configures internal/source.MulticastConfig.
type MulticastSourceConfig struct {
	DataAddr   string `yaml:"data_addr"`
	StatusAddr string `yaml:"status_addr"`
	Interface  string `yaml:"interface"`
	SSRC       uint32 `yaml:"ssrc"`
}

// AnalyzerConfig configures internal/analyzer.Config.
type AnalyzerConfig struct {
	// Mode is "channel" or "wide_spectrum".
	Mode string `yaml:"mode"`

	Detector     DetectorConfig `yaml:"detector"`
	SchedWorkers int            `yaml:"sched_workers"`
	MaxBuffers   int            `yaml:"max_buffers"`
	// VMCircularBuffers backs the read-buffer pool with anonymous mmap
	// regions instead of heap allocations (internal/bufpool.NewVMCircular,
	// spec.md §4.B's vm_circularity option).
	VMCircularBuffers bool        `yaml:"vm_circular_buffers"`
	Sweep             SweepConfig `yaml:"sweep"`
}

// DetectorConfig configures internal/detector.Params. SampleRate is
// left out: the analyzer derives it from the source's effective rate,
// per analyzer.New. WindowSize is passed through unchanged.
type DetectorConfig struct {
	// Mode is "spectrum" or "autocorrelation".
	Mode               string `yaml:"mode"`
	// WindowSize must equal the source's per-read bulk size (its MTU,
	// when the source reports one above the analyzer's default read
	// size of 32768 samples); a window larger than a bulk makes that
	// FeedBulk call a no-op, and a smaller one analyses only the first
	// WindowSize samples of each bulk.
	WindowSize         int     `yaml:"window_size"`
	IntervalPSDMs      int     `yaml:"interval_psd_ms"`
	IntervalChannelsMs int     `yaml:"interval_channels_ms"`
	MinSNRdB           float64 `yaml:"min_snr_db"`
	MaxChannels        int     `yaml:"max_channels"`
}

// SweepConfig configures internal/analyzer.SweepPlan; ignored unless
// AnalyzerConfig.Mode is "wide_spectrum".
type SweepConfig struct {
	MinFreq float64 `yaml:"min_freq"`
	MaxFreq float64 `yaml:"max_freq"`
	// Strategy is "linear" or "random".
	Strategy string `yaml:"strategy"`
	// Partitioning is "contiguous" or "overlapped".
	Partitioning  string `yaml:"partitioning"`
	FFTMinSamples int    `yaml:"fft_min_samples"`
}

// RecorderConfig configures the capture recorder (module K: a
// read-only tap on the analyzer's baseband filter chain that writes
// raw or zstd-compressed IQ to disk, the write-side counterpart of
// FileSourceConfig).
type RecorderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	Compressed bool   `yaml:"compressed"`
}

// PrometheusConfig configures the Prometheus metrics sink (module M),
// grounded on the teacher's prometheus.go PrometheusConfig/
// PushgatewayConfig pair.
type PrometheusConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Listen      string            `yaml:"listen"`
	Pushgateway PushgatewayConfig `yaml:"pushgateway"`
}

// PushgatewayConfig mirrors the teacher's PushgatewayConfig.
type PushgatewayConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Instance string `yaml:"instance"`
	Token    string `yaml:"token"`
}

// MQTTConfig configures the MQTT telemetry sink (module M), grounded
// on the teacher's mqtt_publisher.go MQTTConfig/MQTTTLSConfig pair.
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicPrefix     string        `yaml:"topic_prefix"`
	PublishInterval int           `yaml:"publish_interval"`
	QoS             byte          `yaml:"qos"`
	Retain          bool          `yaml:"retain"`
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig mirrors the teacher's MQTTTLSConfig.
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// LoadConfig reads and parses filename, applying the same
// read-then-unmarshal-then-default sequence as the teacher's
// LoadConfig.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in the zero-value defaults the teacher's
// LoadConfig applies inline after unmarshaling.
func (c *Config) applyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = "file"
	}
	if c.Analyzer.Mode == "" {
		c.Analyzer.Mode = "channel"
	}
	if c.Analyzer.SchedWorkers < 0 {
		c.Analyzer.SchedWorkers = 0
	}
	if c.Analyzer.MaxBuffers == 0 {
		c.Analyzer.MaxBuffers = 4
	}
	if c.Analyzer.Detector.Mode == "" {
		c.Analyzer.Detector.Mode = "spectrum"
	}
	if c.Analyzer.Detector.WindowSize == 0 {
		c.Analyzer.Detector.WindowSize = 1 << 15
	}
	if c.Analyzer.Detector.IntervalPSDMs == 0 {
		c.Analyzer.Detector.IntervalPSDMs = 250
	}
	if c.Analyzer.Detector.IntervalChannelsMs == 0 {
		c.Analyzer.Detector.IntervalChannelsMs = 1000
	}
	if c.Analyzer.Detector.MinSNRdB == 0 {
		c.Analyzer.Detector.MinSNRdB = 10
	}
	if c.Analyzer.Detector.MaxChannels == 0 {
		c.Analyzer.Detector.MaxChannels = 16
	}
	if c.Analyzer.Sweep.Strategy == "" {
		c.Analyzer.Sweep.Strategy = "linear"
	}
	if c.Analyzer.Sweep.Partitioning == "" {
		c.Analyzer.Sweep.Partitioning = "contiguous"
	}
	if c.Analyzer.Sweep.FFTMinSamples == 0 {
		c.Analyzer.Sweep.FFTMinSamples = 4096
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "sdranalyzer"
	}
	if c.MQTT.PublishInterval == 0 {
		c.MQTT.PublishInterval = 5
	}
	if c.Prometheus.Listen == "" {
		c.Prometheus.Listen = ":9090"
	}
}

// Validate checks the cross-field invariants the teacher's Validate
// checks for its own config sections.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "file":
		if c.Source.File.Path == "" {
			return fmt.Errorf("source.file.path is required when source.kind is \"file\"")
		}
		if c.Source.File.SampleRate <= 0 {
			return fmt.Errorf("source.file.sample_rate must be positive")
		}
	case "multicast":
		if c.Source.Multicast.DataAddr == "" {
			return fmt.Errorf("source.multicast.data_addr is required when source.kind is \"multicast\"")
		}
	default:
		return fmt.Errorf("source.kind must be \"file\" or \"multicast\", got %q", c.Source.Kind)
	}

	switch c.Analyzer.Mode {
	case "channel", "wide_spectrum":
	default:
		return fmt.Errorf("analyzer.mode must be \"channel\" or \"wide_spectrum\", got %q", c.Analyzer.Mode)
	}

	if c.Analyzer.Mode == "wide_spectrum" {
		if c.Analyzer.Sweep.MaxFreq <= c.Analyzer.Sweep.MinFreq {
			return fmt.Errorf("analyzer.sweep.max_freq must exceed min_freq")
		}
	}

	if c.Recorder.Enabled && c.Recorder.Path == "" {
		return fmt.Errorf("recorder.path is required when recorder.enabled is true")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
	}

	if c.Prometheus.Pushgateway.Enabled && c.Prometheus.Pushgateway.URL == "" {
		return fmt.Errorf("prometheus.pushgateway.url is required when prometheus.pushgateway.enabled is true")
	}

	return nil
}
