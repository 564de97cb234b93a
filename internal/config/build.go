package config

import (
	"fmt"
	"time"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/detector"
	"github.com/cwsl/sdranalyzer/internal/source"
)

// BuildSource constructs the Source named by SourceConfig.Kind.
func (c *Config) BuildSource() (source.Source, error) {
	switch c.Source.Kind {
	case "file":
		f := c.Source.File
		src, err := source.NewFileSource(source.FileConfig{
			Path:       f.Path,
			SampleRate: f.SampleRate,
			Compressed: f.Compressed,
			Loop:       f.Loop,
		})
		if err != nil {
			return nil, fmt.Errorf("config: build file source: %w", err)
		}
		return src, nil
	case "multicast":
		m := c.Source.Multicast
		src, err := source.NewMulticastSource(source.MulticastConfig{
			DataAddr:   m.DataAddr,
			StatusAddr: m.StatusAddr,
			Interface:  m.Interface,
			SSRC:       m.SSRC,
		})
		if err != nil {
			return nil, fmt.Errorf("config: build multicast source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("config: unknown source.kind %q", c.Source.Kind)
	}
}

// BuildAnalyzerConfig translates AnalyzerConfig into analyzer.Config,
// leaving Source for the caller to attach (analyzer.New requires an
// already-open Source, built separately via BuildSource so the caller
// can decide when to open it).
func (c *Config) BuildAnalyzerConfig(src source.Source) (analyzer.Config, error) {
	var mode analyzer.Mode
	switch c.Analyzer.Mode {
	case "channel":
		mode = analyzer.ModeChannel
	case "wide_spectrum":
		mode = analyzer.ModeWideSpectrum
	default:
		return analyzer.Config{}, fmt.Errorf("config: unknown analyzer.mode %q", c.Analyzer.Mode)
	}

	var detMode detector.Mode
	switch c.Analyzer.Detector.Mode {
	case "spectrum":
		detMode = detector.ModeSpectrum
	case "autocorrelation":
		detMode = detector.ModeAutocorrelation
	default:
		return analyzer.Config{}, fmt.Errorf("config: unknown analyzer.detector.mode %q", c.Analyzer.Detector.Mode)
	}

	var strategy analyzer.SweepStrategy
	switch c.Analyzer.Sweep.Strategy {
	case "linear":
		strategy = analyzer.SweepLinear
	case "random":
		strategy = analyzer.SweepRandom
	default:
		return analyzer.Config{}, fmt.Errorf("config: unknown analyzer.sweep.strategy %q", c.Analyzer.Sweep.Strategy)
	}

	var partitioning analyzer.SpectrumPartitioning
	switch c.Analyzer.Sweep.Partitioning {
	case "contiguous":
		partitioning = analyzer.PartitionContiguous
	case "overlapped":
		partitioning = analyzer.PartitionOverlapped
	default:
		return analyzer.Config{}, fmt.Errorf("config: unknown analyzer.sweep.partitioning %q", c.Analyzer.Sweep.Partitioning)
	}

	return analyzer.Config{
		Source: src,
		Mode:   mode,
		Detector: detector.Params{
			Mode:             detMode,
			WindowSize:       c.Analyzer.Detector.WindowSize,
			IntervalPSD:      time.Duration(c.Analyzer.Detector.IntervalPSDMs) * time.Millisecond,
			IntervalChannels: time.Duration(c.Analyzer.Detector.IntervalChannelsMs) * time.Millisecond,
			MinSNRdB:         c.Analyzer.Detector.MinSNRdB,
			MaxChannels:      c.Analyzer.Detector.MaxChannels,
		},
		SchedWorkers:      c.Analyzer.SchedWorkers,
		MaxBuffers:        c.Analyzer.MaxBuffers,
		VMCircularBuffers: c.Analyzer.VMCircularBuffers,
		Sweep: analyzer.SweepPlan{
			MinFreq:       c.Analyzer.Sweep.MinFreq,
			MaxFreq:       c.Analyzer.Sweep.MaxFreq,
			Strategy:      strategy,
			Partitioning:  partitioning,
			FFTMinSamples: c.Analyzer.Sweep.FFTMinSamples,
		},
	}, nil
}
