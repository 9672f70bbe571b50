package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scimbridge", Name: "operations_total", Help: "Number of bridge operations by name and outcome."},
		[]string{"op", "outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scimbridge", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "scimbridge", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

// RecordOperation tracks one façade operation outcome ("ok" or "error").
func RecordOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OperationsTotal.WithLabelValues(op, outcome).Inc()
}
