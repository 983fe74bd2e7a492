package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/events"
)

// registerSSERoutes registers the process lifecycle event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Current status on connect, then real-time ffmpeg lifecycle events: starts, stops, crashes, start failures and input changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"status":          models.StatusData{},
		"process-started": events.ProcessStartedEvent{},
		"process-stopped": events.ProcessStoppedEvent{},
		"process-crashed": events.ProcessCrashedEvent{},
		"start-failed":    events.StartFailedEvent{},
		"input-changed":   events.InputChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		stream := events.NewStream(s.eventBus, 10)
		events.Forward[events.ProcessStartedEvent](stream)
		events.Forward[events.ProcessStoppedEvent](stream)
		events.Forward[events.ProcessCrashedEvent](stream)
		events.Forward[events.StartFailedEvent](stream)
		events.Forward[events.InputChangedEvent](stream)
		defer s.closeStream("events", stream)

		if err := send.Data(s.statusData()); err != nil {
			return
		}
		streamEvents(ctx, send, stream.C())
	})
}

// closeStream unsubscribes an SSE client's stream.
func (s *Server) closeStream(name string, stream *events.Stream) {
	stream.Close()
	if dropped := stream.Dropped(); dropped > 0 {
		s.logger.Debug("SSE client fell behind", "stream", name, "dropped", dropped)
	}
}

// streamEvents forwards events to the client until it disconnects.
func streamEvents(ctx context.Context, send sse.Sender, eventCh <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if err := send.Data(event); err != nil {
				return
			}
		}
	}
}
