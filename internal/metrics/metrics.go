package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters and timings for the pickup recognition flow. Registered on
// the default registry and exposed via /metrics.
var (
	Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_recognitions_total",
		Help: "Recognition attempts by outcome.",
	}, []string{"outcome"})

	MatchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pickup_match_distance",
		Help:    "Euclidean distance of accepted matches.",
		Buckets: prometheus.LinearBuckets(0, 0.05, 16),
	})

	ExtractionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pickup_embedding_extraction_seconds",
		Help:    "Wall time spent extracting face embeddings.",
		Buckets: prometheus.DefBuckets,
	})

	Checkins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_checkins_total",
		Help: "Check-in requests by outcome.",
	}, []string{"outcome"})
)
