package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matrixscan_frames_submitted_total",
			Help: "Frames handed to a scanning session",
		},
	)

	framesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrixscan_frames_dropped_total",
			Help: "Frames discarded before analysis",
		},
		[]string{"reason"}, // reason: busy, invalid, closed, late
	)

	framesAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matrixscan_frames_analyzed_total",
			Help: "Frames that completed preprocessing and decoding",
		},
	)

	analysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matrixscan_analysis_duration_seconds",
			Help:    "Per-frame analysis time including decode",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	decodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matrixscan_decode_failures_total",
			Help: "Decoder calls that failed with an error other than no result",
		},
	)

	candidatesSelected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matrixscan_candidates_per_frame",
			Help:    "Quadrilateral candidate regions per analysed frame",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrixscan_detections_total",
			Help: "Raw detections by symbology",
		},
		[]string{"symbology"},
	)

	barcodesNew = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matrixscan_barcodes_new_total",
			Help: "Barcodes appended to a session list",
		},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "matrixscan_sessions_active",
			Help: "Scanning sessions currently running",
		},
	)
)
