package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProvideMetrics returns the /metrics handler.
func ProvideMetrics() http.Handler { return promhttp.Handler() }
