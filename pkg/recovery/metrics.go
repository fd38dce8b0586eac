package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepmill_errors_total",
			Help: "Classified platform errors by category and code",
		},
		[]string{"category", "code"},
	)

	recoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepmill_recoveries_total",
			Help: "Recovery attempts by category and result",
		},
		[]string{"category", "result"},
	)
)
