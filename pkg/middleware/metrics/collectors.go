package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exthost_transport_response_seconds",
			Help:    "transport response time.",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 30},
		},
		[]string{"transport"},
	)

	totalRequestsToMethod = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exthost_transport_requests_total", Help: "requests by transport, code, and method"},
		[]string{"transport", "code", "method"},
	)

	totalUnauthenticated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exthost_transport_unauthenticated_total", Help: "requests rejected by auth"},
		[]string{"transport"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalRequestsToMethod,
		totalUnauthenticated,
	)
}
