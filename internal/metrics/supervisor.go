package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	launchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hlsnode",
		Subsystem: "supervisor",
		Name:      "launches_total",
		Help:      "FFmpeg launches that survived the startup window",
	}, []string{"kind"})

	stopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hlsnode",
		Subsystem: "supervisor",
		Name:      "stops_total",
		Help:      "Completed stops by reason and termination outcome",
	}, []string{"reason", "outcome"})

	crashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hlsnode",
		Subsystem: "supervisor",
		Name:      "crashes_total",
		Help:      "FFmpeg processes found dead without a stop request",
	})

	startFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hlsnode",
		Subsystem: "supervisor",
		Name:      "start_failures_total",
		Help:      "Failed launch attempts by reason",
	}, []string{"reason"})

	running = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hlsnode",
		Subsystem: "supervisor",
		Name:      "running",
		Help:      "1 if an ffmpeg process is running",
	})

	stopDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hlsnode",
		Subsystem: "supervisor",
		Name:      "stop_duration_seconds",
		Help:      "Time taken to terminate ffmpeg",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 15},
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hlsnode",
		Subsystem: "hls",
		Name:      "requests_total",
		Help:      "HLS file requests by kind and outcome",
	}, []string{"kind", "outcome"})

	waitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hlsnode",
		Subsystem: "hls",
		Name:      "wait_duration_seconds",
		Help:      "Time requests spent waiting for a file to appear",
		Buckets:   []float64{0.05, 0.25, 0.5, 1, 2, 3, 4, 5, 10},
	})
)

// RecordLaunch counts a successful launch.
func RecordLaunch(restarted bool) {
	kind := "started"
	if restarted {
		kind = "restarted"
	}
	launchesTotal.WithLabelValues(kind).Inc()
	running.Set(1)
}

// RecordStop counts a completed stop.
func RecordStop(reason, outcome string, took time.Duration) {
	stopsTotal.WithLabelValues(reason, outcome).Inc()
	stopDuration.Observe(took.Seconds())
	running.Set(0)
}

// RecordCrash counts an unexpected process death.
func RecordCrash() {
	crashesTotal.Inc()
	running.Set(0)
}

// RecordStartFailure counts a failed launch attempt.
func RecordStartFailure(reason string) {
	startFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordRequest counts an HLS request.
func RecordRequest(kind, outcome string) {
	requestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveWait records how long a request waited for a file.
func ObserveWait(d time.Duration) {
	waitDuration.Observe(d.Seconds())
}
