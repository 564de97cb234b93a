// Command sdanalyze runs the Local Analyzer against a configured
// source (capture file or live ka9q-radio-style multicast feed) and
// exports its telemetry to Prometheus and/or MQTT, the headless
// equivalent of the teacher's main.go HTTP server entrypoint.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/config"
	"github.com/cwsl/sdranalyzer/internal/recorder"
	"github.com/cwsl/sdranalyzer/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	statsInterval := flag.Duration("stats-interval", 5*time.Second, "Interval between telemetry stats samples")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("sdanalyze: load configuration: %v", err)
	}

	src, err := cfg.BuildSource()
	if err != nil {
		log.Fatalf("sdanalyze: build source: %v", err)
	}

	analyzerCfg, err := cfg.BuildAnalyzerConfig(src)
	if err != nil {
		log.Fatalf("sdanalyze: build analyzer config: %v", err)
	}

	a, err := analyzer.New(analyzerCfg)
	if err != nil {
		log.Fatalf("sdanalyze: start analyzer: %v", err)
	}

	if cfg.Recorder.Enabled {
		rec, err := recorder.New(recorder.Config{Path: cfg.Recorder.Path, Compressed: cfg.Recorder.Compressed})
		if err != nil {
			log.Fatalf("sdanalyze: start capture recorder: %v", err)
		}
		a.AddBasebandFilter(rec.Write)
		defer rec.Close()
	}

	sink, err := telemetry.NewSink(cfg)
	if err != nil {
		log.Fatalf("sdanalyze: start telemetry: %v", err)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		sink.Run(a, *statsInterval)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("sdanalyze: shutting down")
	if err := a.Close(); err != nil {
		log.Printf("sdanalyze: close analyzer: %v", err)
	}
	<-runDone
}
