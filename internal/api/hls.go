package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/metrics"
	"github.com/smazurov/hlsnode/internal/supervisor"
	"github.com/smazurov/hlsnode/ui"
)

// registerHLSRoutes registers the player and HLS artifact routes. These
// are plain mux handlers: no auth, no OpenAPI.
func (s *Server) registerHLSRoutes() {
	logger := logging.GetLogger("http")
	cors := DefaultCORSConfig()
	player := ui.PlayerHandler(s.layout.Manifest)

	wrap := func(h http.HandlerFunc) http.Handler {
		return LoggingHandler(logger, WithCORS(cors, h))
	}
	s.mux.Handle("GET /{$}", wrap(func(w http.ResponseWriter, r *http.Request) {
		s.handleIndex(w, r, player)
	}))
	s.mux.Handle("GET /"+hls.ClientFile, wrap(s.handleClient))
	s.mux.Handle("GET /{file}", wrap(s.handleArtifact))
}

// handleIndex serves the player page. Opening it counts as activity and
// starts ffmpeg; a start failure is logged and the page served anyway,
// the player's manifest request reports it.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, player http.Handler) {
	s.supervisor.Touch()
	if _, err := s.supervisor.EnsureRunning(r.Context()); err != nil {
		s.logger.Warn("FFmpeg not started for index request", "error", err)
	}

	path := s.layout.Path(hls.IndexFile)
	if fileExists(path) {
		http.ServeFile(w, r, path)
		return
	}
	player.ServeHTTP(w, r)
}

// handleClient serves the hls.js client library. It is not activity.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	path := s.layout.Path(hls.ClientFile)
	if !fileExists(path) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	http.ServeFile(w, r, path)
}

// handleArtifact serves the playlist or a segment, starting ffmpeg and
// waiting for the file to be written when needed.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")

	var kind string
	switch {
	case s.layout.IsManifest(name):
		kind = "manifest"
	case s.layout.IsSegment(name):
		kind = "segment"
	default:
		metrics.RecordRequest("other", "rejected")
		http.NotFound(w, r)
		return
	}

	s.supervisor.Touch()

	if _, err := s.supervisor.EnsureRunning(r.Context()); err != nil {
		var exitErr *supervisor.ImmediateExitError
		switch {
		case errors.Is(err, supervisor.ErrNoInputConfigured):
			metrics.RecordRequest(kind, "no_input")
			http.Error(w, "Error: Stream input URL not configured.", http.StatusInternalServerError)
		case errors.As(err, &exitErr):
			metrics.RecordRequest(kind, "start_failed")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		case r.Context().Err() != nil:
			metrics.RecordRequest(kind, hls.WaitCancelled.String())
		default:
			metrics.RecordRequest(kind, "error")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	path := s.layout.Path(name)
	began := time.Now()
	outcome := hls.WaitForFile(r.Context(), path, s.wait, s.supervisor.IsRunning)
	if waited := time.Since(began); waited > time.Millisecond {
		metrics.ObserveWait(waited)
		s.logger.Debug("Waited for HLS file", "file", name, "outcome", outcome.String(), "waited", waited.Round(time.Millisecond))
	}
	metrics.RecordRequest(kind, outcome.String())

	switch outcome {
	case hls.WaitReady:
		w.Header().Set("Content-Type", s.layout.ContentType(name))
		if kind == "manifest" {
			w.Header().Set("Cache-Control", "no-cache")
		}
		http.ServeFile(w, r, path)
	case hls.WaitProcessDied:
		s.logger.Error("FFmpeg exited while waiting for HLS file", "file", name)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	case hls.WaitTimedOut:
		s.logger.Error("HLS file not found after waiting", "file", name)
		http.NotFound(w, r)
	case hls.WaitCancelled:
		// Client went away
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
