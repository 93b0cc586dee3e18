// Package metrics holds the process-wide Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SalesCreated counts accepted sale creations.
	SalesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_created_total",
		Help: "Number of sales created.",
	})

	// SalesTransitioned counts terminal transitions by target status.
	SalesTransitioned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_transitioned_total",
		Help: "Number of sales moved to a terminal status.",
	}, []string{"status"})

	// OracleVerdicts counts settlement lookups by verdict. A rising UNKNOWN
	// rate indicates a payment-network outage rather than unpaid sales.
	OracleVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_oracle_verdicts_total",
		Help: "Settlement oracle lookups by verdict.",
	}, []string{"verdict"})
)
