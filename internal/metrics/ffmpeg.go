// Package metrics provides Prometheus metrics for the ffmpeg supervisor.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hlsnode",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current FFmpeg encoding FPS",
	})

	ffmpegDroppedFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hlsnode",
		Subsystem: "ffmpeg",
		Name:      "dropped_frames",
		Help:      "Dropped frames in the current run",
	})

	ffmpegDuplicateFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hlsnode",
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames",
		Help:      "Duplicate frames in the current run",
	})

	ffmpegSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hlsnode",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	})

	// Local copy for the status API and SSE exporter.
	progressCache   *Progress
	progressCacheMu sync.RWMutex
)

// Progress holds the latest values reported by ffmpeg -progress.
type Progress struct {
	Frame           int64
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
	OutTime         string
	UpdatedAt       time.Time
}

// SetFFmpegFPS sets the current FPS.
func SetFFmpegFPS(fps float64) {
	ffmpegFPS.Set(fps)
	updateProgress(func(p *Progress) { p.FPS = fps })
}

// SetFFmpegDroppedFrames sets the dropped frames count.
func SetFFmpegDroppedFrames(count float64) {
	ffmpegDroppedFrames.Set(count)
	updateProgress(func(p *Progress) { p.DroppedFrames = count })
}

// SetFFmpegDuplicateFrames sets the duplicate frames count.
func SetFFmpegDuplicateFrames(count float64) {
	ffmpegDuplicateFrames.Set(count)
	updateProgress(func(p *Progress) { p.DuplicateFrames = count })
}

// SetFFmpegSpeed sets the processing speed.
func SetFFmpegSpeed(speed float64) {
	ffmpegSpeed.Set(speed)
	updateProgress(func(p *Progress) { p.Speed = speed })
}

// SetFFmpegPosition records the frame counter and output timestamp.
func SetFFmpegPosition(frame int64, outTime string) {
	updateProgress(func(p *Progress) {
		p.Frame = frame
		p.OutTime = outTime
	})
}

// ResetProgress clears progress values, called when ffmpeg stops.
func ResetProgress() {
	ffmpegFPS.Set(0)
	ffmpegDroppedFrames.Set(0)
	ffmpegDuplicateFrames.Set(0)
	ffmpegSpeed.Set(0)

	progressCacheMu.Lock()
	progressCache = nil
	progressCacheMu.Unlock()
}

// GetProgress returns a copy of the latest progress, or nil if none was reported.
func GetProgress() *Progress {
	progressCacheMu.RLock()
	defer progressCacheMu.RUnlock()
	if progressCache == nil {
		return nil
	}
	dup := *progressCache
	return &dup
}

func updateProgress(update func(*Progress)) {
	progressCacheMu.Lock()
	defer progressCacheMu.Unlock()
	if progressCache == nil {
		progressCache = &Progress{}
	}
	update(progressCache)
	progressCache.UpdatedAt = time.Now()
}
