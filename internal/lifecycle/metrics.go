// internal/lifecycle/metrics.go
package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prestamos_supervisor_runs_total",
			Help: "Supervisor ticks by result.",
		},
		[]string{"result"},
	)
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prestamos_supervisor_transitions_total",
			Help: "Committed loan transitions and debts created.",
		},
		[]string{"kind"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prestamos_notifications_total",
			Help: "Queued notifications by type and dispatch outcome.",
		},
		[]string{"type", "outcome"},
	)
)
