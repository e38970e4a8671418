// Package metrics provides Prometheus metrics for the newsletter agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsletter"

var (
	// FetchTotal counts fetches by kind (seed, link) and result
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of page fetches",
		},
		[]string{"kind", "result"},
	)

	// ClassificationTotal counts relevance decisions
	ClassificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_total",
			Help:      "Total number of relevance classifications",
		},
		[]string{"result"},
	)

	// ArticlesTotal counts articles by outcome (stored, duplicate, failed)
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Total number of relevant articles by persistence outcome",
		},
		[]string{"outcome"},
	)

	// PipelineDuration measures full pipeline runs
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of article pipeline runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// RollupsTotal counts rollups by trigger and result
	RollupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollups_total",
			Help:      "Total number of rollups",
		},
		[]string{"result"},
	)

	// NewslettersTotal counts generated newsletters
	NewslettersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "newsletters_generated_total",
			Help:      "Total number of newsletters generated",
		},
	)

	// PodcastFailuresTotal counts podcast script failures
	PodcastFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "podcast_failures_total",
			Help:      "Total number of failed podcast script generations",
		},
	)
)

// RecordFetch records a fetch outcome
func RecordFetch(kind string, err error) {
	FetchTotal.WithLabelValues(kind, result(err)).Inc()
}

// RecordClassification records a relevance decision or failure
func RecordClassification(relevant bool, err error) {
	switch {
	case err != nil:
		ClassificationTotal.WithLabelValues("error").Inc()
	case relevant:
		ClassificationTotal.WithLabelValues("relevant").Inc()
	default:
		ClassificationTotal.WithLabelValues("irrelevant").Inc()
	}
}

// RecordArticle records a persistence outcome
func RecordArticle(outcome string) {
	ArticlesTotal.WithLabelValues(outcome).Inc()
}

// RecordPipeline records a pipeline run duration
func RecordPipeline(seconds float64) {
	PipelineDuration.Observe(seconds)
}

// RecordRollup records a rollup outcome
func RecordRollup(err error) {
	RollupsTotal.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
