package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/supervisor"
	"github.com/smazurov/hlsnode/internal/version"
)

// Controller is the part of the supervisor the HTTP layer drives.
type Controller interface {
	Touch()
	EnsureRunning(ctx context.Context) (supervisor.StartResult, error)
	IsRunning() bool
	Stop()
	Status() supervisor.Status
	Stats() (process.Stats, error)
}

// Server represents the Huma v2 API server plus the HLS file routes.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	supervisor Controller
	eventBus   *events.Bus
	layout     hls.Layout
	wait       hls.WaitOptions
	options    *Options
	logger     *slog.Logger
}

// Options configures the server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Supervisor        Controller
	EventBus          *events.Bus
	Layout            hls.Layout
	Wait              hls.WaitOptions
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, failure := requestCredentials(ctx)
		if failure != "" {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="hlsnode"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, failure)
			return
		}

		user, pass, ok := strings.Cut(credentials, ":")
		if !ok || user != username || pass != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="hlsnode"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// requestCredentials extracts "user:pass" from the Authorization header,
// or from the auth query parameter for EventSource clients that cannot set
// headers. On failure it returns the message for the 401 response.
func requestCredentials(ctx huma.Context) (credentials, failure string) {
	encoded := ctx.Query("auth")
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "Invalid authentication type"
		}
		encoded = header[len(prefix):]
	}
	if encoded == "" {
		return "", "Authentication required"
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "Invalid credentials format"
	}
	return string(decoded), ""
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("hlsnode API", version.String())
	config.Info.Description = "On-demand HLS packaging of a single input stream"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:        api,
		mux:        mux,
		supervisor: opts.Supervisor,
		eventBus:   opts.EventBus,
		layout:     opts.Layout,
		wait:       opts.Wait,
		options:    opts,
		logger:     logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	server.registerHLSRoutes()

	server.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start listens on addr and serves until Stop. Stop may run before Start,
// in which case Start returns nil without serving.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	addr := ln.Addr().String()
	s.logger.Info("Starting HLS server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down. In-flight HLS requests get until ctx is done;
// SSE streams are closed when it expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HLS server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				BuildID:   versionInfo.BuildID,
				GoVersion: versionInfo.GoVersion,
				Compiler:  versionInfo.Compiler,
				Platform:  versionInfo.Platform,
			},
		}, nil
	})

	s.registerProcessRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerMetricsRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
