package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dustin/go-humanize"
	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/metrics"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

// registerProcessRoutes registers status and manual start/stop endpoints.
func (s *Server) registerProcessRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Get ffmpeg process state, activity and resource usage",
		Tags:        []string{"process"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.statusData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-process",
		Method:      http.MethodPost,
		Path:        "/api/process/start",
		Summary:     "Start",
		Description: "Start ffmpeg now. Counts as activity, so the process then idles out like one started by a viewer.",
		Tags:        []string{"process"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.ProcessActionResponse, error) {
		s.supervisor.Touch()
		result, err := s.supervisor.EnsureRunning(ctx)
		if err != nil {
			return nil, startError(err)
		}
		return &models.ProcessActionResponse{
			Body: models.ProcessActionData{Result: result.String(), Status: s.statusData()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-process",
		Method:      http.MethodPost,
		Path:        "/api/process/stop",
		Summary:     "Stop",
		Description: "Stop ffmpeg. The next HLS request starts it again.",
		Tags:        []string{"process"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ProcessActionResponse, error) {
		s.supervisor.Stop()
		return &models.ProcessActionResponse{
			Body: models.ProcessActionData{Result: "stopped", Status: s.statusData()},
		}, nil
	})
}

// startError maps EnsureRunning failures to HTTP errors.
func startError(err error) error {
	var exitErr *supervisor.ImmediateExitError
	switch {
	case errors.Is(err, supervisor.ErrNoInputConfigured):
		return huma.Error500InternalServerError(err.Error())
	case errors.As(err, &exitErr):
		return huma.Error503ServiceUnavailable(exitErr.Error())
	default:
		return huma.Error500InternalServerError("failed to start ffmpeg", err)
	}
}

func (s *Server) statusData() models.StatusData {
	st := s.supervisor.Status()

	data := models.StatusData{
		State:             string(st.State),
		Running:           st.Running,
		PID:               st.PID,
		RunID:             st.RunID,
		LastActivity:      st.LastActivity.Format(time.RFC3339),
		IdleSeconds:       st.Idle.Seconds(),
		InactivitySeconds: st.InactivityLimit.Seconds(),
		InputConfigured:   st.InputConfigured,
		Launches:          st.Launches,
		Crashes:           st.Crashes,
	}
	if !st.StartedAt.IsZero() {
		data.StartedAt = st.StartedAt.Format(time.RFC3339)
		data.Uptime = st.Uptime.Round(time.Second).String()
	}
	if exit := st.LastExit; exit != nil {
		data.LastExit = &models.LastExit{
			RunID:    exit.RunID,
			ExitCode: exit.Code,
			Reason:   exit.Reason,
			At:       exit.At.Format(time.RFC3339),
			Output:   exit.Output,
		}
	}

	if st.Running {
		if stats, err := s.supervisor.Stats(); err == nil {
			data.Stats = &models.ProcessStats{
				CPUPercent: stats.CPUPercent,
				MemoryRSS:  stats.MemoryRSS,
				Memory:     humanize.IBytes(stats.MemoryRSS),
				NumThreads: stats.NumThreads,
				Children:   stats.Children,
			}
		}
		if p := metrics.GetProgress(); p != nil {
			data.Progress = &models.ProgressData{
				Frame:           p.Frame,
				FPS:             p.FPS,
				Speed:           p.Speed,
				DroppedFrames:   p.DroppedFrames,
				DuplicateFrames: p.DuplicateFrames,
				OutTime:         p.OutTime,
			}
		}
	}
	return data
}
