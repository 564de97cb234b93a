package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/config"
	"github.com/cwsl/sdranalyzer/internal/mq"
)

// Sink drains an Analyzer's output queue and periodically samples its
// Stats(), feeding both into whichever telemetry backends are enabled.
// It is the single consumer of Analyzer.Out() for the lifetime of the
// process; it never calls any Analyzer method beyond Out() and Stats().
type Sink struct {
	metrics *Metrics
	mqttPub *Publisher
	pgCfg   config.PushgatewayConfig
}

// NewSink wires up whichever backends cfg enables. Prometheus
// registration always happens (cheap, and /metrics simply won't be
// served if cfg.Prometheus.Enabled is false); MQTT only connects when
// enabled.
func NewSink(cfg *config.Config) (*Sink, error) {
	s := &Sink{metrics: NewMetrics(prometheus.DefaultRegisterer), pgCfg: cfg.Prometheus.Pushgateway}

	if cfg.Prometheus.Enabled {
		ServeMetrics(cfg.Prometheus.Listen)
		log.Printf("telemetry: Prometheus metrics enabled at %s/metrics", cfg.Prometheus.Listen)
	}

	if cfg.MQTT.Enabled {
		pub, err := NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		s.mqttPub = pub
	}

	return s, nil
}

// Run drains a's output queue until it is closed (i.e. until a.Close
// has finished tearing down), dispatching every message to the
// registered backends, and samples a.Stats() on the given interval.
// Intended to run in its own goroutine; returns when Out() is
// exhausted and closed.
func (s *Sink) Run(a *analyzer.Analyzer, statsInterval time.Duration) {
	if statsInterval <= 0 {
		statsInterval = 5 * time.Second
	}
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, ok := a.Out().Read()
			if !ok {
				return
			}
			s.dispatch(msg.Kind, msg.Payload)
		}
	}()

	for {
		select {
		case <-done:
			if s.mqttPub != nil {
				s.mqttPub.Close()
			}
			return
		case <-ticker.C:
			stats := a.Stats()
			s.metrics.ObserveStats(stats)
			if s.pgCfg.Enabled {
				if err := PushToGateway(s.pgCfg); err != nil {
					log.Printf("telemetry: %v", err)
				}
			}
			if s.mqttPub != nil {
				s.mqttPub.PublishStats(stats)
			}
		}
	}
}

// dispatch handles one message off Analyzer.Out(), the same
// kind-switch shape as the analyzer's own control.go dispatch.
func (s *Sink) dispatch(kind mq.Kind, payload any) {
	switch kind {
	case analyzer.KindSourceInit:
		p, ok := payload.(analyzer.SourceInitPayload)
		if ok && p.Status == analyzer.SourceInitFailed {
			s.metrics.ObserveSourceInitFailure()
		}
	case analyzer.KindOutEOS:
		s.metrics.ObserveEOS()
	case analyzer.KindOutChannel:
		p, ok := payload.(analyzer.ChannelListPayload)
		if !ok {
			return
		}
		s.metrics.ObserveChannels(len(p.Channels))
		if s.mqttPub != nil {
			s.mqttPub.PublishChannels(p.Channels)
		}
	case analyzer.KindPSD:
		s.metrics.ObservePSDFrame()
	case analyzer.KindOutBaud:
		p, ok := payload.(analyzer.BaudPayload)
		if ok && p.Estimate != nil {
			s.metrics.ObserveBaud(p.Estimate.Baud)
		}
	}
}
