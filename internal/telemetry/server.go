package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeMetrics starts the Prometheus scrape endpoint on listen (e.g.
// ":9090") in its own goroutine, the Go analog of main.go's
// hardcoded-/metrics http.HandleFunc registration.
func ServeMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(listen, mux)
	}()
}
