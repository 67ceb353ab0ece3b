// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionRunsTotal tracks detection passes over the record set
	DetectionRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "runs_total",
			Help:      "Total number of duplicate detection passes",
		},
	)

	// DetectionDuration tracks detection pass duration in seconds
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate detection passes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// DetectionGroupsFound tracks groups found by the most recent pass
	DetectionGroupsFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "groups_found",
			Help:      "Number of duplicate groups found by the most recent detection pass",
		},
	)

	// DetectionCacheHits tracks review requests served from the Redis cache
	DetectionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "cache_hits_total",
			Help:      "Total number of duplicate listings served from cache",
		},
	)

	// DetectionCacheMisses tracks review requests that ran a fresh pass
	DetectionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "detection",
			Name:      "cache_misses_total",
			Help:      "Total number of duplicate listings that required a fresh detection pass",
		},
	)

	// MergesTotal tracks merge operations by outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "operations_total",
			Help:      "Total number of merge operations by status",
		},
		[]string{"status"},
	)

	// MergeDuration tracks merge operation duration in seconds
	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge operations in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// MergeActivitiesReassigned tracks activities re-pointed by merges
	MergeActivitiesReassigned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "activities_reassigned_total",
			Help:      "Total number of activities reassigned to survivors by merges",
		},
	)

	// MergeClientsAbsorbed tracks client records removed by merges
	MergeClientsAbsorbed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "clients_absorbed_total",
			Help:      "Total number of client records absorbed into survivors",
		},
	)

	// IngestEventsTotal tracks record-stream events by type and status
	IngestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of record stream events processed by type and status",
		},
		[]string{"event_type", "status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

// RecordMerge records one merge operation outcome
func RecordMerge(status string, durationSeconds float64) {
	MergesTotal.WithLabelValues(status).Inc()
	MergeDuration.Observe(durationSeconds)
}

// RecordIngestEvent records one processed record-stream event
func RecordIngestEvent(eventType, status string) {
	IngestEventsTotal.WithLabelValues(eventType, status).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
