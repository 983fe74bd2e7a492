package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/smazurov/hlsnode/internal/ffmpeg"
	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

// Options for the CLI - flat structure with toml mapping.
// Durations are strings like "60s", parsed by Durations.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port            string `help:"Address to listen on" short:"p" default:":8007" toml:"server.port" env:"SERVER_PORT"`
	AllowEmptyInput bool   `help:"Start even when no input URL is configured" default:"false" toml:"server.allow_empty_input" env:"SERVER_ALLOW_EMPTY_INPUT"`

	// Input settings
	InputURL string `help:"Stream input URL read by ffmpeg" short:"i" default:"" toml:"input.url" env:"INPUT_URL"`

	// Output settings
	OutputDir        string `help:"Directory ffmpeg writes HLS files to" short:"o" default:"/hls-web" toml:"output.dir" env:"OUTPUT_DIR"`
	OutputManifest   string `help:"Playlist file name" default:"stream.m3u8" toml:"output.manifest" env:"OUTPUT_MANIFEST"`
	OutputSegmentExt string `help:"Segment file extension" default:".ts" toml:"output.segment_ext" env:"OUTPUT_SEGMENT_EXT"`

	// HLS muxer settings
	HLSTime     int    `help:"Target segment duration in seconds" default:"4" toml:"hls.time" env:"HLS_TIME"`
	HLSListSize int    `help:"Playlist entries kept" default:"5" toml:"hls.list_size" env:"HLS_LIST_SIZE"`
	HLSFlags    string `help:"HLS muxer flags" default:"delete_segments" toml:"hls.flags" env:"HLS_FLAGS"`

	// FFmpeg settings
	FfmpegBinary    string `help:"ffmpeg executable" default:"ffmpeg" toml:"ffmpeg.binary" env:"FFMPEG_BINARY"`
	FfmpegOptions   string `help:"Comma-separated input/output feature flags, e.g. rtsp_tcp,low_latency" default:"" toml:"ffmpeg.options" env:"FFMPEG_OPTIONS"`
	FfmpegExtraArgs string `help:"Extra arguments inserted before the HLS muxer" default:"" toml:"ffmpeg.extra_args" env:"FFMPEG_EXTRA_ARGS"`
	FfmpegLogFile   string `help:"Write raw ffmpeg output to this rotating file" default:"" toml:"ffmpeg.log_file" env:"FFMPEG_LOG_FILE"`
	FfmpegProgress  bool   `help:"Collect ffmpeg -progress reports" default:"true" toml:"ffmpeg.progress" env:"FFMPEG_PROGRESS"`

	// Supervisor settings
	SupervisorInactivityTimeout string `help:"Stop ffmpeg after this long without HLS requests" default:"60s" toml:"supervisor.inactivity_timeout" env:"SUPERVISOR_INACTIVITY_TIMEOUT"`
	SupervisorReapInterval      string `help:"How often to check for inactivity" default:"5s" toml:"supervisor.reap_interval" env:"SUPERVISOR_REAP_INTERVAL"`
	SupervisorGracePeriod       string `help:"Time between SIGTERM and SIGKILL" default:"10s" toml:"supervisor.grace_period" env:"SUPERVISOR_GRACE_PERIOD"`
	SupervisorKillWait          string `help:"Time to wait after SIGKILL" default:"2s" toml:"supervisor.kill_wait" env:"SUPERVISOR_KILL_WAIT"`
	SupervisorStartupWait       string `help:"Exits within this window are start failures" default:"1s" toml:"supervisor.startup_wait" env:"SUPERVISOR_STARTUP_WAIT"`

	// Serving settings
	ServeWaitTimeout  string `help:"How long a request waits for an HLS file" default:"5s" toml:"serve.wait_timeout" env:"SERVE_WAIT_TIMEOUT"`
	ServeWaitInterval string `help:"Poll interval while waiting for an HLS file" default:"500ms" toml:"serve.wait_interval" env:"SERVE_WAIT_INTERVAL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username for the control API" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password for the control API" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingFfmpeg     string `help:"ffmpeg output logging level" default:"" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingAPI        string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

// Durations holds the parsed duration options.
type Durations struct {
	InactivityTimeout time.Duration
	ReapInterval      time.Duration
	GracePeriod       time.Duration
	KillWait          time.Duration
	StartupWait       time.Duration
	WaitTimeout       time.Duration
	WaitInterval      time.Duration
}

// Durations parses every duration option. Empty values keep the package defaults.
func (o *Options) Durations() (Durations, error) {
	var d Durations
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"supervisor.inactivity_timeout", o.SupervisorInactivityTimeout, &d.InactivityTimeout},
		{"supervisor.reap_interval", o.SupervisorReapInterval, &d.ReapInterval},
		{"supervisor.grace_period", o.SupervisorGracePeriod, &d.GracePeriod},
		{"supervisor.kill_wait", o.SupervisorKillWait, &d.KillWait},
		{"supervisor.startup_wait", o.SupervisorStartupWait, &d.StartupWait},
		{"serve.wait_timeout", o.ServeWaitTimeout, &d.WaitTimeout},
		{"serve.wait_interval", o.ServeWaitInterval, &d.WaitInterval},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.name, err)
		}
		if v <= 0 {
			return d, fmt.Errorf("%s: must be positive, got %s", f.name, f.value)
		}
		*f.dst = v
	}
	return d, nil
}

// Layout returns where ffmpeg writes its output. A playlist name or segment
// extension that would match other files in the directory is rejected.
func (o *Options) Layout() (hls.Layout, error) {
	l := o.layout()
	if err := l.Validate(); err != nil {
		return hls.Layout{}, err
	}
	return l, nil
}

func (o *Options) layout() hls.Layout {
	dir := o.OutputDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return hls.Layout{
		Dir:        dir,
		Manifest:   o.OutputManifest,
		SegmentExt: o.OutputSegmentExt,
	}
}

// SupervisorConfig assembles the supervisor settings. command builds the
// ffmpeg argv for an input.
func (o *Options) SupervisorConfig(command supervisor.CommandFunc) (supervisor.Config, error) {
	d, err := o.Durations()
	if err != nil {
		return supervisor.Config{}, err
	}
	layout, err := o.Layout()
	if err != nil {
		return supervisor.Config{}, err
	}
	return supervisor.Config{
		Layout:            layout,
		Command:           command,
		InactivityTimeout: d.InactivityTimeout,
		ReapInterval:      d.ReapInterval,
		GracePeriod:       d.GracePeriod,
		KillWait:          d.KillWait,
		StartupWait:       d.StartupWait,
	}, nil
}

// WaitOptions returns the bounds for waiting on HLS files.
func (o *Options) WaitOptions() (hls.WaitOptions, error) {
	d, err := o.Durations()
	if err != nil {
		return hls.WaitOptions{}, err
	}
	return hls.WaitOptions{Timeout: d.WaitTimeout, Interval: d.WaitInterval}, nil
}

// FFmpeg holds the ffmpeg settings that may change at runtime.
type FFmpeg struct {
	Options   []ffmpeg.OptionType
	ExtraArgs []string
}

// ParseFFmpeg validates the option flags and splits the extra arguments.
func ParseFFmpeg(options []string, extraArgs string) (FFmpeg, error) {
	opts, err := ffmpeg.ParseOptions(options)
	if err != nil {
		return FFmpeg{}, err
	}
	extra, err := ffmpeg.SplitArgs(extraArgs)
	if err != nil {
		return FFmpeg{}, fmt.Errorf("ffmpeg.extra_args: %w", err)
	}
	return FFmpeg{Options: opts, ExtraArgs: extra}, nil
}

// FFmpeg parses the ffmpeg options from the CLI/config values.
func (o *Options) FFmpeg() (FFmpeg, error) {
	return ParseFFmpeg(strings.Split(o.FfmpegOptions, ","), o.FfmpegExtraArgs)
}

// Params returns the ffmpeg parameters for input. progressSocket may be empty.
func (o *Options) Params(input string, f FFmpeg, progressSocket string) *ffmpeg.Params {
	return &ffmpeg.Params{
		Binary:         o.FfmpegBinary,
		InputURL:       input,
		Options:        f.Options,
		HLSTime:        o.HLSTime,
		HLSListSize:    o.HLSListSize,
		HLSFlags:       o.HLSFlags,
		OutputPath:     o.layout().ManifestPath(),
		ExtraArgs:      f.ExtraArgs,
		ProgressSocket: progressSocket,
	}
}

// LoggingConfig returns the logging settings. Unset module levels follow
// the global level.
func (o *Options) LoggingConfig() logging.Config {
	modules := make(map[string]string)
	for module, level := range map[string]string{
		"supervisor": o.LoggingSupervisor,
		"ffmpeg":     o.LoggingFfmpeg,
		"http":       o.LoggingHTTP,
		"api":        o.LoggingAPI,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}
