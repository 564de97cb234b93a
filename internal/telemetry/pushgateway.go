package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/cwsl/sdranalyzer/internal/config"
)

const pushgatewayJobName = "sdranalyzer"

// PushToGateway pushes every registered metric to the configured
// Pushgateway, mirroring the teacher's pushToGateway (prometheus.go):
// one job, basic-auth'd with the instance/token pair, grouped by
// instance.
func PushToGateway(cfg config.PushgatewayConfig) error {
	if !cfg.Enabled {
		return nil
	}

	pusher := push.New(cfg.URL, pushgatewayJobName).
		Gatherer(prometheus.DefaultGatherer).
		BasicAuth(cfg.Instance, cfg.Token).
		Grouping("instance", cfg.Instance)

	if err := pusher.Push(); err != nil {
		return fmt.Errorf("telemetry: push to gateway: %w", err)
	}
	return nil
}
