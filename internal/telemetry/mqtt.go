package telemetry

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwsl/sdranalyzer/internal/analyzer"
	"github.com/cwsl/sdranalyzer/internal/config"
	"github.com/cwsl/sdranalyzer/internal/detector"
)

// Publisher publishes analyzer telemetry to an MQTT broker, grounded
// on the teacher's MQTTPublisher (mqtt_publisher.go): same client
// options (auto-reconnect, keepalive, optional TLS), same
// random-client-id scheme, same JSON envelope shape.
type Publisher struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// ChannelBatchPayload is published once per CHANNEL output message, one
// JSON document per detected-channel batch (module M, SPEC_FULL.md).
type ChannelBatchPayload struct {
	Timestamp int64              `json:"timestamp"`
	Channels  []detector.Channel `json:"channels"`
}

// StatsPayload is the periodic aggregate metrics envelope, the Go
// analog of the teacher's MetricPayload.
type StatsPayload struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

// generateClientID mirrors the teacher's generateClientID.
func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "sdranalyzer_" + hex.EncodeToString(b)
}

func loadTLSConfig(tlsCfg config.MQTTTLSConfig) (*tls.Config, error) {
	if !tlsCfg.Enabled {
		return nil, nil
	}

	tc := &tls.Config{}

	if tlsCfg.CACert != "" {
		caCert, err := os.ReadFile(tlsCfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("telemetry: read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("telemetry: parse CA certificate")
		}
		tc.RootCAs = pool
	}

	if tlsCfg.ClientCert != "" && tlsCfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.ClientCert, tlsCfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("telemetry: load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

// NewPublisher connects to the configured MQTT broker. Returns nil,
// nil if MQTT is disabled.
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("telemetry: load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("telemetry: MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("telemetry: MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect to MQTT broker: %w", token.Error())
	}

	log.Printf("telemetry: MQTT connected to %s", cfg.Broker)
	return &Publisher{client: client, cfg: cfg}, nil
}

// PublishChannels publishes one batch of detected channels.
func (p *Publisher) PublishChannels(channels []detector.Channel) {
	payload := ChannelBatchPayload{Timestamp: time.Now().Unix(), Channels: channels}
	p.publish(p.cfg.TopicPrefix+"/channels", payload)
}

// PublishStats publishes the analyzer's current occupancy/rate
// snapshot as a flat metric map.
func (p *Publisher) PublishStats(s analyzer.Stats) {
	payload := StatsPayload{
		Timestamp: time.Now().Unix(),
		Metrics: map[string]float64{
			"bufferpool_allocated": float64(s.BufferPool.Allocated),
			"bufferpool_free":      float64(s.BufferPool.Free),
			"bufferpool_acquired":  float64(s.BufferPool.Acquired),
			"scheduler_workers":    float64(s.SchedWorkers),
			"scheduler_tasks":      float64(s.SchedBoundTasks),
			"inspectors_open":      float64(s.NumInspectors),
			"sample_rate":          s.SampleRate,
			"measured_sample_rate": s.MeasuredSampRate,
		},
	}
	p.publish(p.cfg.TopicPrefix+"/stats", payload)
}

func (p *Publisher) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("telemetry: marshal MQTT payload for %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, data)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("telemetry: publish to %s: %v", topic, token.Error())
	}
}

// Close disconnects the MQTT client.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}
