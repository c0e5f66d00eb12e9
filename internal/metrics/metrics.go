package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "fleetfox"

var (
	ImageUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_uploads_total",
			Help:      "Total number of photo uploads accepted, labeled by slot.",
		},
		[]string{"slot"},
	)

	UploadFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_fallbacks_total",
			Help:      "Total number of uploads that fell back to inline data URLs after storage failure.",
		},
	)

	SlotEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_evictions_total",
			Help:      "Total number of slots evicted on restore because the stored URL stopped resolving.",
		},
		[]string{"slot"},
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of submission attempts, labeled by outcome kind.",
		},
		[]string{"outcome"},
	)

	SubmissionLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_latency_seconds",
			Help:      "Wall time of one submission round-trip to the workflow (seconds).",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"outcome"},
	)

	VerdictsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_ingested_total",
			Help:      "Total number of pushed verdict events accepted, labeled by status.",
		},
		[]string{"status"},
	)

	VerdictsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_duplicate_total",
			Help:      "Total number of pushed verdict events dropped as duplicates.",
		},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total number of verdict webhook deliveries, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by rate limiting, labeled by scope.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		ImageUploadsTotal,
		UploadFallbacksTotal,
		SlotEvictionsTotal,
		SubmissionsTotal,
		SubmissionLatencySeconds,
		VerdictsIngestedTotal,
		VerdictsDuplicateTotal,
		WebhookDeliveriesTotal,
		RateLimitHitsTotal,
	)
}
