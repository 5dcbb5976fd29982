package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling loop
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finops_agent_sweeps_total",
			Help: "Total number of alert sweeps",
		},
		[]string{"status"}, // ok | error
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finops_agent_sweep_duration_seconds",
			Help:    "Alert sweep duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	AlertsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finops_agent_alerts_processed_total",
			Help: "Total number of alerts analyzed, notified and marked as seen",
		},
	)

	// Analysis
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finops_agent_analyses_total",
			Help: "Total number of alert analyses",
		},
		[]string{"status"}, // ok | error
	)

	LLMRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finops_agent_llm_request_duration_seconds",
			Help:    "Generative model request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	LLMTruncatedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finops_agent_llm_truncated_responses_total",
			Help: "Total number of generative model responses cut off at the output token limit",
		},
	)

	EmbeddingRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finops_agent_embedding_request_duration_seconds",
			Help:    "Embedding request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// Notification
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finops_agent_notifications_total",
			Help: "Total number of Slack alert notifications",
		},
		[]string{"status"}, // ok | error
	)

	// Similarity store
	RAGRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finops_agent_rag_records",
			Help: "Number of alert records held in the similarity store",
		},
	)
)
