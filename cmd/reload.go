package cmd

import (
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/smazurov/hlsnode/internal/config"
)

// Reloader applies config file changes while the server runs. The input
// goes to the supervisor immediately; ffmpeg options are picked up by the
// next launch. Settings pinned on the command line or in the environment
// are left alone.
type Reloader struct {
	current   atomic.Pointer[FFmpeg]
	setInput  func(string) bool
	pinInput  bool
	pinFFmpeg bool
	logger    *slog.Logger
}

// ReloaderConfig configures a Reloader.
type ReloaderConfig struct {
	FFmpeg    FFmpeg
	SetInput  func(string) bool
	PinInput  bool
	PinFFmpeg bool
	Logger    *slog.Logger
}

// NewReloader creates a Reloader holding the startup ffmpeg settings.
func NewReloader(cfg ReloaderConfig) *Reloader {
	r := &Reloader{
		setInput:  cfg.SetInput,
		pinInput:  cfg.PinInput,
		pinFFmpeg: cfg.PinFFmpeg,
		logger:    cfg.Logger,
	}
	ff := cfg.FFmpeg
	r.current.Store(&ff)
	return r
}

// FFmpeg returns the ffmpeg settings for the next launch.
func (r *Reloader) FFmpeg() FFmpeg {
	return *r.current.Load()
}

// Apply applies a reloaded config file.
func (r *Reloader) Apply(cfg config.StreamConfig) {
	if !r.pinInput && r.setInput != nil {
		r.setInput(cfg.InputURL())
	}
	if r.pinFFmpeg {
		return
	}

	next, err := ParseFFmpeg(cfg.FFmpeg.Options, cfg.FFmpeg.ExtraArgs)
	if err != nil {
		r.logger.Warn("Ignoring invalid ffmpeg settings", "error", err)
		return
	}
	if reflect.DeepEqual(next, r.FFmpeg()) {
		return
	}
	r.current.Store(&next)
	r.logger.Info("FFmpeg settings changed, applied on next start",
		"options", next.Options,
		"extra_args", next.ExtraArgs)
}
