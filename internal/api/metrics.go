package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/hlsnode/internal/events"
)

// registerMetricsRoutes registers the ffmpeg progress SSE endpoint.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "Real-time ffmpeg progress: frame count, fps, speed, dropped and duplicate frames",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"progress": events.ProgressEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		stream := events.NewStream(s.eventBus, 10)
		events.Forward[events.ProgressEvent](stream)
		defer s.closeStream("metrics", stream)

		streamEvents(ctx, send, stream.C())
	})
}
