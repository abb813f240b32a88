// internal/delivery/metrics.go
package delivery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prestamos_provider_attempts_total",
			Help: "Delivery attempts per provider by result.",
		},
		[]string{"provider", "result"},
	)
	providerSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prestamos_provider_send_duration_seconds",
			Help:    "Duration of a single provider send.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)
)

func observeAttempt(provider string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	providerAttemptsTotal.WithLabelValues(provider, result).Inc()
	providerSendDuration.WithLabelValues(provider).Observe(d.Seconds())
}
