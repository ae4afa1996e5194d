package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deployment metrics - Track the deploy workflow
var (
	DeploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvmdeploy_deployments_total",
			Help: "Total number of deployments by outcome",
		},
		[]string{"outcome"},
	)

	FundingPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvmdeploy_funding_polls_total",
		Help: "Total number of account snapshots fetched while waiting for funds",
	})

	FundingWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tvmdeploy_funding_wait_seconds",
		Help:    "Time between the funding request and the funds being observed",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tvmdeploy_submission_duration_seconds",
			Help:    "Time taken for a submitted message to be confirmed",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// Contract metrics - Track calls against deployed contracts
var (
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvmdeploy_calls_total",
			Help: "Total number of submitted contract calls by function and outcome",
		},
		[]string{"function", "outcome"},
	)

	LocalRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvmdeploy_local_runs_total",
			Help: "Total number of local executions by function and outcome",
		},
		[]string{"function", "outcome"},
	)

	AccountBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tvmdeploy_account_balance_nanotokens",
			Help: "Last observed balance of a deployed contract",
		},
		[]string{"contract"},
	)
)

// Error metrics - Track failures
var (
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvmdeploy_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)
)

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
