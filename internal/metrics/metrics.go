package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ClaimDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_decisions_total",
			Help: "Claims decided, by pipeline and decision",
		},
		[]string{"pipeline", "decision"},
	)

	ClaimDecisionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_decision_errors_total",
			Help: "Failed claim decisions, by pipeline and reason",
		},
		[]string{"pipeline", "reason"},
	)

	CreditedAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credited_amount_total",
			Help: "Currency credited to user balances on approval",
		},
		[]string{"pipeline", "party"},
	)

	PendingClaims = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pending_claims",
			Help: "Claims waiting for a decision",
		},
		[]string{"pipeline"},
	)
)
