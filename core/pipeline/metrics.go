package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluguard_extractor_failures_total",
			Help: "Total number of failed extractor calls, by extractor",
		},
		[]string{"extractor"},
	)

	extractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "halluguard_extractor_duration_seconds",
			Help:    "Duration of extractor calls, by extractor",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"extractor"},
	)
)
