package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/gofrs/flock"
	"github.com/smazurov/hlsnode/cmd"
	"github.com/smazurov/hlsnode/internal/api"
	"github.com/smazurov/hlsnode/internal/config"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/ffmpeg"
	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/metrics/collectors"
	"github.com/smazurov/hlsnode/internal/metrics/exporters"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/supervisor"
	"github.com/smazurov/hlsnode/internal/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var cli humacli.CLI
	var settings *cmd.Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Error("Failed to load config", "error", loadErr)
			os.Exit(2)
		}
		settings = opts

		// Initialize logging system
		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		ff, err := opts.FFmpeg()
		if err != nil {
			logger.Error("Invalid ffmpeg settings", "error", err)
			os.Exit(2)
		}
		wait, err := opts.WaitOptions()
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(2)
		}

		var progress *collectors.ProgressCollector
		var progressSocket string
		if opts.FfmpegProgress {
			progressSocket = filepath.Join(os.TempDir(), fmt.Sprintf("hlsnode-progress-%d.sock", os.Getpid()))
			progress = collectors.NewProgressCollector(progressSocket, logging.GetLogger("metrics"))
		}

		// The supervisor is created before the reloader it reads options
		// from, so the command resolves it lazily.
		var reloader *cmd.Reloader
		command := func(input string) ([]string, error) {
			return ffmpeg.BuildArgs(opts.Params(input, reloader.FFmpeg(), progressSocket))
		}
		supCfg, err := opts.SupervisorConfig(command)
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(2)
		}

		var ffmpegOutput *process.FileOutput
		supOpts := supervisor.Options{
			Logger:       logging.GetLogger("supervisor"),
			OutputLogger: logging.GetLogger("ffmpeg"),
			LogParser:    ffmpeg.ParseLogLevel,
			Bus:          eventBus,
		}
		if opts.FfmpegLogFile != "" {
			ffmpegOutput = process.NewFileOutput(process.FileOutputConfig{Path: opts.FfmpegLogFile}, logger)
			supOpts.Output = ffmpegOutput
		}
		sup := supervisor.New(supCfg, opts.InputURL, supOpts)

		reloader = cmd.NewReloader(cmd.ReloaderConfig{
			FFmpeg:    ff,
			SetInput:  sup.SetInput,
			PinInput:  config.Overridden(cli.Root(), "input-url", "INPUT_URL"),
			PinFFmpeg: config.Overridden(cli.Root(), "ffmpeg-options", "FFMPEG_OPTIONS") || config.Overridden(cli.Root(), "ffmpeg-extra-args", "FFMPEG_EXTRA_ARGS"),
			Logger:    logger,
		})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Supervisor:   sup,
			EventBus:     eventBus,
			Layout:       supCfg.Layout,
			Wait:         wait,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler(logging.GetLogger("metrics"))
		}
		server := api.NewServer(apiOpts)

		sseExporter := exporters.NewSSEExporter(eventBus)
		watchOpts := []config.WatcherOption[config.StreamConfig]{
			config.WithErrorHandler[config.StreamConfig](func(err error) {
				logger.Warn("Config reload failed", "error", err)
			}),
		}
		if initial, loadErr := config.LoadStreamConfig(opts.Config); loadErr == nil {
			watchOpts = append(watchOpts, config.WithInitial(initial))
		}
		watcher := config.NewConfigWatcher(opts.Config, config.LoadStreamConfig, logger, watchOpts...)
		watcher.OnReload(reloader.Apply)

		ctx, cancel := context.WithCancel(context.Background())
		var dirLock *flock.Flock

		hooks.OnStart(func() {
			if opts.InputURL == "" && !opts.AllowEmptyInput {
				logger.Error("No input URL configured; set input.url, HLSNODE_INPUT_URL or --input-url")
				os.Exit(1)
			}

			lock, lockErr := supCfg.Layout.Lock()
			if lockErr != nil {
				logger.Error("Cannot take output directory", "dir", supCfg.Layout.Dir, "error", lockErr)
				os.Exit(1)
			}
			dirLock = lock
			if _, purgeErr := supCfg.Layout.Purge(logger); purgeErr != nil {
				logger.Warn("Failed to purge stale HLS files", "error", purgeErr)
			}

			if progress != nil {
				if startErr := progress.Start(ctx); startErr != nil {
					logger.Warn("Progress reporting disabled", "error", startErr)
					progressSocket = ""
				}
			}
			sseExporter.Start(ctx)

			if startErr := watcher.Start(ctx); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			}

			go sup.Run(ctx)

			logger.Info("Starting hlsnode",
				"version", version.String(),
				"output_dir", supCfg.Layout.Dir,
				"manifest", supCfg.Layout.Manifest,
				"input_configured", opts.InputURL != "")

			if sent, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			} else if sent {
				logger.Debug("Notified systemd of readiness")
			}

			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if stopErr := server.Stop(stopCtx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop ffmpeg after the HTTP server stops accepting requests
			_ = watcher.Stop()
			cancel()
			sup.Shutdown()

			sseExporter.Stop()
			if progress != nil {
				if stopErr := progress.Stop(); stopErr != nil {
					logger.Warn("Error stopping progress collector", "error", stopErr)
				}
			}
			if ffmpegOutput != nil {
				_ = ffmpegOutput.Close()
			}
			if dirLock != nil {
				_ = dirLock.Unlock()
			}
		})
	})

	cli.Root().Use = "hlsnode"
	cli.Root().Short = "Serve a stream as HLS, running ffmpeg only while someone watches"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreatePurgeCmd(func() (hls.Layout, error) {
		return settings.Layout()
	}))
	cli.Root().AddCommand(cmd.CreateCommandCmd(func() ([]string, error) {
		ff, err := settings.FFmpeg()
		if err != nil {
			return nil, err
		}
		return ffmpeg.BuildArgs(settings.Params(strings.TrimSpace(settings.InputURL), ff, ""))
	}))

	// Run the CLI
	cli.Run()
}
