package process

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricArticlesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newstide",
		Name:      "articles_processed_total",
		Help:      "Articles processed by final status.",
	}, []string{"status"})

	metricTopicMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "newstide",
		Name:      "topic_matches_total",
		Help:      "Article-topic associations created.",
	})

	metricClusterOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newstide",
		Name:      "cluster_outcomes_total",
		Help:      "Clustering decisions by outcome (assigned, created, failed).",
	}, []string{"outcome"})

	metricCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "newstide",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a full processing cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	metricBackfillJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newstide",
		Name:      "backfill_jobs_total",
		Help:      "Backfill jobs by terminal status.",
	}, []string{"status"})
)
