package logic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_cache_lookups_total",
		Help: "Cache reads by source (strong, legacy, miss)",
	}, []string{"source"})

	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_generations_total",
		Help: "Generation attempts by outcome",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictions_generation_duration_seconds",
		Help:    "Duration of aggregation plus generation",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
	})

	generationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictions_generations_in_flight",
		Help: "Fixtures currently being generated by this instance",
	})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_upstream_failures_total",
		Help: "Upstream feed calls that failed during aggregation",
	}, []string{"feed"})

	richnessScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictions_data_richness_score",
		Help:    "Data richness score of aggregated contexts",
		Buckets: []float64{16, 30, 45, 60, 70, 85, 100},
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_verifications_total",
		Help: "Verification attempts by outcome",
	}, []string{"outcome"})
)
