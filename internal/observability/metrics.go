package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vb",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the blur pipeline",
	}, []string{"source_id"})

	RegionsBlurred = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vb",
		Name:      "regions_blurred_total",
		Help:      "Total number of regions blurred",
	}, []string{"source_id"})

	DetectionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vb",
		Name:      "detections_dropped_total",
		Help:      "Raw detections discarded before tracking (degenerate or oversized)",
	}, []string{"source_id"})

	ActiveTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vb",
		Name:      "active_tracks",
		Help:      "Number of live tracks per source",
	}, []string{"source_id"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vb",
		Name:      "stage_duration_seconds",
		Help:      "Duration of per-frame pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vb",
		Name:      "queue_depth",
		Help:      "Number of pending frame tasks in queue",
	})

	ActiveSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vb",
		Name:      "active_sources",
		Help:      "Number of currently ingesting video sources",
	})

	JobsAssembled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vb",
		Name:      "jobs_assembled_total",
		Help:      "Blur jobs assembled into output videos, by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vb",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vb",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
