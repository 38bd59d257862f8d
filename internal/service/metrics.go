package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cascadeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_server_cascade_attempts_total",
			Help: "Total number of cascade stage attempts.",
		},
		[]string{"stage", "provider", "status"},
	)
	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_server_pipeline_duration_seconds",
			Help:    "Histogram of end-to-end story pipeline durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	sceneRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_server_scene_render_duration_seconds",
			Help:    "Histogram of per-scene image generation durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
