// Package metrics registers the agent's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecodesTotal counts raw decode events emitted by the active decoder.
	DecodesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockaudit_decodes_total",
		Help: "Raw barcode decode events received from the decoder.",
	})

	// DuplicatesSuppressedTotal counts decode events dropped by the debouncer.
	DuplicatesSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockaudit_duplicates_suppressed_total",
		Help: "Decode events suppressed inside the debounce window.",
	})

	// SubmissionsTotal counts audit submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockaudit_submissions_total",
		Help: "Audit submissions partitioned by outcome.",
	}, []string{"outcome"})

	// ReportRefreshesTotal counts report dataset refreshes by trigger.
	ReportRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockaudit_report_refreshes_total",
		Help: "Report dataset refreshes partitioned by trigger.",
	}, []string{"trigger"})
)

// Submission outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeValidation  = "validation"
	OutcomeRateLimited = "rate_limited"
	OutcomeNetwork     = "network"
	OutcomeRemote      = "remote"
)
