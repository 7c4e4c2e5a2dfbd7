package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_runs_total",
		Help: "Total number of panorama runs, by outcome",
	}, []string{"outcome"})

	FramesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pano_frames_read_total",
		Help: "Total number of frames decoded from video sources",
	})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pano_frames_sampled_total",
		Help: "Total number of frames retained for stitching",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pano_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	StitchStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pano_stitch_status_total",
		Help: "Stitcher status codes returned, by code",
	}, []string{"status"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pano_queue_depth",
		Help: "Number of videos waiting to be stitched",
	})
)

// Push sends the default registry to a Prometheus Pushgateway. Used by
// one-shot runs, which exit before they could be scraped.
func Push(url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}
