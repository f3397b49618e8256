package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exthost_operations_total", Help: "resource operations by operation, type and status"},
		[]string{"operation", "type", "status"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exthost_operation_duration_seconds",
			Help:    "resource operation latency.",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 30, 120},
		},
		[]string{"operation"},
	)

	handlerFaults = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "exthost_handler_faults_total", Help: "handler errors and panics caught at the dispatch boundary"},
	)
)

func init() {
	prometheus.MustRegister(
		operationsTotal,
		operationDuration,
		handlerFaults,
	)
}
