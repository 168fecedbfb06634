package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "heatmap",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"stage"})

	selectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heatmap",
		Name:      "selection_events_total",
		Help:      "Selection events recorded, by axis and source.",
	}, []string{"axis", "source"})

	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heatmap",
		Name:      "fallbacks_total",
		Help:      "Degenerate inputs answered with a fallback instead of an error.",
	}, []string{"kind"})

	imageCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heatmap",
		Name:      "image_cache_requests_total",
		Help:      "Heatmap image cache lookups, by result.",
	}, []string{"result"})
)

func observe(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
