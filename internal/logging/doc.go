// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Keeps recent entries in a ring buffer served by /api/logs/stream
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"supervisor": "debug",  // Per-module overrides
//			"ffmpeg":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("supervisor")
//	logger.Info("Starting ffmpeg", "pid", pid)
//
// # Output Destinations
//
//	Journal available + stdout available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Stdout available only               → TextHandler or JSONHandler
//
// A BufferHandler is always part of the chain.
//
// # Viewing Logs
//
//	journalctl -t hlsnode -f
//	journalctl -t hlsnode MODULE=ffmpeg -p warning
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	ffmpeg = "warn"
//	api = "debug"
package logging
