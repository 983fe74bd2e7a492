package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes ffmpeg progress as events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishProgress()
		}
	}
}

func (s *SSEExporter) publishProgress() {
	p := metrics.GetProgress()
	if p == nil {
		return
	}
	s.eventBus.Publish(events.ProgressEvent{
		Frame:           p.Frame,
		FPS:             strconv.FormatFloat(p.FPS, 'f', 2, 64),
		Speed:           strconv.FormatFloat(p.Speed, 'f', 2, 64),
		DroppedFrames:   strconv.FormatFloat(p.DroppedFrames, 'f', 0, 64),
		DuplicateFrames: strconv.FormatFloat(p.DuplicateFrames, 'f', 0, 64),
		OutTime:         p.OutTime,
		Timestamp:       p.UpdatedAt.Format(time.RFC3339),
	})
}
