// Package metrics exposes prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesIngested counts records successfully appended, by path.
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_messages_ingested_total",
		Help: "Canonical records appended to the store, by ingestion path.",
	}, []string{"path"})

	// ScoringFailures counts degraded scoring results.
	ScoringFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_scoring_failures_total",
		Help: "Scoring calls that fell back to degraded all-zero scores.",
	})

	// MediaFailures counts attachments that produced no durable URI.
	MediaFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_media_failures_total",
		Help: "Attachments dropped due to download or upload failure.",
	})

	// StoreAppendFailures counts appends that exhausted their retries.
	StoreAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_store_append_failures_total",
		Help: "Store appends that failed after bounded retries.",
	})

	// Escalations counts messages flagged for investigation.
	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_escalations_total",
		Help: "Messages whose risk profile required investigation.",
	})
)
