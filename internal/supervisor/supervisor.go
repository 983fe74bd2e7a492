package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/metrics"
	"github.com/smazurov/hlsnode/internal/process"
)

// StartResult tells the caller what EnsureRunning did.
type StartResult int

const (
	AlreadyRunning StartResult = iota
	Started
	Restarted
)

func (r StartResult) String() string {
	switch r {
	case AlreadyRunning:
		return "already_running"
	case Started:
		return "started"
	case Restarted:
		return "restarted"
	}
	return "unknown"
}

// StopReason labels why a process was stopped.
type StopReason string

const (
	ReasonRequested    StopReason = "requested"
	ReasonInactive     StopReason = "inactive"
	ReasonShutdown     StopReason = "shutdown"
	ReasonInputChanged StopReason = "input_changed"
)

// CommandFunc returns the argv that packages input as HLS.
type CommandFunc func(input string) ([]string, error)

// Default timings.
const (
	DefaultInactivityTimeout = 60 * time.Second
	DefaultReapInterval      = 5 * time.Second
	DefaultGracePeriod       = 10 * time.Second
	DefaultKillWait          = 2 * time.Second
	DefaultStartupWait       = 1 * time.Second
	DefaultDrainWait         = 2 * time.Second
)

// Config holds the supervisor settings.
type Config struct {
	Layout  hls.Layout
	Command CommandFunc

	InactivityTimeout time.Duration
	ReapInterval      time.Duration
	GracePeriod       time.Duration // SIGTERM to SIGKILL
	KillWait          time.Duration // SIGKILL to giving up
	StartupWait       time.Duration // exits inside this window are start failures
	DrainWait         time.Duration // bound on joining output drainers
	TailLines         int
}

func (c Config) withDefaults() Config {
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.KillWait <= 0 {
		c.KillWait = DefaultKillWait
	}
	if c.StartupWait <= 0 {
		c.StartupWait = DefaultStartupWait
	}
	if c.DrainWait <= 0 {
		c.DrainWait = DefaultDrainWait
	}
	if c.TailLines <= 0 {
		c.TailLines = 20
	}
	return c
}

// Options wires optional collaborators.
type Options struct {
	Logger       *slog.Logger
	OutputLogger *slog.Logger          // ffmpeg output (nil = Logger)
	LogParser    process.LogParser     // e.g. ffmpeg.ParseLogLevel
	Output       process.OutputHandler // raw output sink, e.g. process.FileOutput
	Bus          *events.Bus
	Clock        func() time.Time
}

// Supervisor keeps at most one ffmpeg process running on demand.
// All decisions about the process happen under mu; activity is tracked
// separately and never takes the lock.
type Supervisor struct {
	cfg          Config
	logger       *slog.Logger
	outputLogger *slog.Logger
	parser       process.LogParser
	output       process.OutputHandler
	bus          *events.Bus
	now          func() time.Time

	activity Activity

	// live mirrors handle for lock-free liveness checks. It is cleared as
	// soon as a stop begins.
	live atomic.Pointer[process.Handle]

	mu       sync.Mutex
	input    string
	handle   *process.Handle
	state    process.State
	launches int
	crashes  int
	lastExit *ExitInfo
}

// New creates a supervisor with no process running. The activity clock
// starts at creation time.
func New(cfg Config, input string, opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Supervisor{
		cfg:          cfg.withDefaults(),
		logger:       logger,
		outputLogger: opts.OutputLogger,
		parser:       opts.LogParser,
		output:       opts.Output,
		bus:          opts.Bus,
		now:          clock,
		input:        input,
		state:        process.StateIdle,
	}
	s.activity.Touch(clock())
	return s
}

// Touch marks HLS activity now.
func (s *Supervisor) Touch() {
	s.activity.Touch(s.now())
}

// LastActivity returns the time of the latest Touch.
func (s *Supervisor) LastActivity() time.Time {
	return s.activity.Last()
}

// IsRunning reports whether an ffmpeg process is alive and not being
// stopped. It does not take the supervisor lock, so request handlers
// polling it are never held up by a Stop waiting out its grace period.
func (s *Supervisor) IsRunning() bool {
	h := s.live.Load()
	return h != nil && h.Alive()
}

// setHandleLocked replaces the current handle. The caller must hold mu.
func (s *Supervisor) setHandleLocked(h *process.Handle) {
	s.handle = h
	s.live.Store(h)
}

// EnsureRunning starts ffmpeg unless it is already alive. A dead process
// left over from a crash is reconciled and replaced. The call blocks for at
// most the startup window; an exit inside it is returned as
// *ImmediateExitError. It does not record activity.
func (s *Supervisor) EnsureRunning(ctx context.Context) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restarted := false
	if s.handle != nil {
		if s.handle.Alive() {
			return AlreadyRunning, nil
		}
		s.reconcileDeadLocked()
		restarted = true
	}

	if err := ctx.Err(); err != nil {
		return AlreadyRunning, err
	}

	if s.input == "" {
		s.logger.Error("Cannot start ffmpeg, no input configured")
		s.recordStartFailure("no_input", ErrNoInputConfigured, 0, nil)
		return AlreadyRunning, ErrNoInputConfigured
	}

	args, err := s.cfg.Command(s.input)
	if err != nil {
		err = fmt.Errorf("build ffmpeg command: %w", err)
		s.logger.Error("Cannot start ffmpeg", "error", err)
		s.recordStartFailure("command", err, 0, nil)
		return AlreadyRunning, err
	}

	if err := s.cfg.Layout.EnsureDir(); err != nil {
		s.logger.Warn("Output directory unavailable", "error", err)
	}
	if _, err := s.cfg.Layout.Purge(s.logger); err != nil {
		s.logger.Warn("Failed to purge stale HLS files", "error", err)
	}

	s.state = process.StateStarting
	s.logger.Info("Starting ffmpeg", "input", redactURL(s.input), "restart", restarted)

	h, err := process.Start(args, process.Options{
		Logger:       s.logger,
		OutputLogger: s.outputLogger,
		LogParser:    s.parser,
		Output:       s.output,
		TailLines:    s.cfg.TailLines,
	})
	if err != nil {
		s.state = process.StateIdle
		exitErr := &ImmediateExitError{Code: launchErrorCode(err), Err: err}
		s.logger.Error("Failed to launch ffmpeg", "error", err, "code", exitErr.Code)
		s.recordStartFailure("launch", exitErr, exitErr.Code, nil)
		return AlreadyRunning, exitErr
	}

	timer := time.NewTimer(s.cfg.StartupWait)
	defer timer.Stop()

	select {
	case <-h.Done():
		h.WaitDrained(s.cfg.DrainWait)
		code, _ := h.ExitCode()
		exitErr := &ImmediateExitError{Code: code, Output: h.Tail()}
		s.logger.Error("FFmpeg exited immediately",
			"exit_code", code,
			"output", exitErr.Diagnostics())
		s.state = process.StateIdle
		s.lastExit = &ExitInfo{RunID: h.RunID, Code: code, Reason: "immediate_exit", At: s.now(), Output: exitErr.Output}
		s.recordStartFailure("immediate_exit", exitErr, code, exitErr.Output)
		return AlreadyRunning, exitErr
	case <-timer.C:
	}

	s.setHandleLocked(h)
	s.state = process.StateRunning
	s.launches++
	metrics.RecordLaunch(restarted)
	s.bus.Publish(events.ProcessStartedEvent{
		RunID:     h.RunID,
		PID:       h.PID(),
		Restarted: restarted,
		Timestamp: s.now().Format(time.RFC3339),
	})

	if restarted {
		return Restarted, nil
	}
	return Started, nil
}

// Stop terminates ffmpeg if it is running. Safe to call at any time and
// any number of times.
func (s *Supervisor) Stop() {
	s.stop(ReasonRequested)
}

// Shutdown stops ffmpeg on server exit.
func (s *Supervisor) Shutdown() {
	s.stop(ReasonShutdown)
}

func (s *Supervisor) stop(reason StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(reason)
}

// stopLocked terminates the process group and clears the handle.
// The caller must hold mu.
func (s *Supervisor) stopLocked(reason StopReason) {
	h := s.handle
	if h == nil {
		return
	}
	if !h.Alive() {
		s.reconcileDeadLocked()
		return
	}

	defer func() {
		s.setHandleLocked(nil)
		s.state = process.StateIdle
	}()

	s.live.Store(nil)
	s.state = process.StateStopping
	s.logger.Info("Stopping ffmpeg", "reason", reason, "pid", h.PID())

	began := time.Now()
	outcome := h.Terminate(s.cfg.GracePeriod, s.cfg.KillWait)
	if outcome == process.StopKilled || outcome == process.StopUnconfirmed {
		s.logger.Warn("FFmpeg did not exit after SIGTERM", "outcome", outcome.String(), "grace_period", s.cfg.GracePeriod)
	}
	h.WaitDrained(s.cfg.DrainWait)
	took := time.Since(began)

	code, _ := h.ExitCode()
	s.logger.Info("FFmpeg stopped",
		"reason", reason,
		"outcome", outcome.String(),
		"exit_code", code,
		"uptime", h.Uptime().Round(time.Millisecond),
		"took", took.Round(time.Millisecond))

	s.lastExit = &ExitInfo{RunID: h.RunID, Code: code, Reason: string(reason), At: s.now()}
	metrics.RecordStop(string(reason), outcome.String(), took)
	metrics.ResetProgress()
	s.bus.Publish(events.ProcessStoppedEvent{
		RunID:     h.RunID,
		PID:       h.PID(),
		Reason:    string(reason),
		Outcome:   outcome.String(),
		ExitCode:  code,
		Uptime:    h.Uptime().Round(time.Second).String(),
		Timestamp: s.now().Format(time.RFC3339),
	})
}

// reconcileDeadLocked clears a handle whose process exited without being
// asked to. The caller must hold mu.
func (s *Supervisor) reconcileDeadLocked() {
	h := s.handle
	s.setHandleLocked(nil)
	s.state = process.StateCrashed

	h.WaitDrained(s.cfg.DrainWait)
	code, _ := h.ExitCode()
	tail := h.Tail()

	s.logger.Warn("FFmpeg exited unexpectedly",
		"run_id", h.RunID,
		"pid", h.PID(),
		"exit_code", code,
		"uptime", h.Uptime().Round(time.Millisecond))
	if len(tail) > 0 {
		s.logger.Warn("Last ffmpeg output", "output", strings.Join(tail, "\n"))
	}

	s.crashes++
	s.lastExit = &ExitInfo{RunID: h.RunID, Code: code, Reason: "crashed", At: s.now(), Output: tail}
	metrics.RecordCrash()
	metrics.ResetProgress()
	s.bus.Publish(events.ProcessCrashedEvent{
		RunID:     h.RunID,
		PID:       h.PID(),
		ExitCode:  code,
		Output:    tail,
		Timestamp: s.now().Format(time.RFC3339),
	})
}

func (s *Supervisor) recordStartFailure(reason string, err error, code int, output []string) {
	metrics.RecordStartFailure(reason)
	s.bus.Publish(events.StartFailedEvent{
		Reason:    reason,
		ExitCode:  code,
		Error:     err.Error(),
		Output:    output,
		Timestamp: s.now().Format(time.RFC3339),
	})
}

// SetInput replaces the input source. A running process is stopped so the
// next request starts one reading the new input. Returns false if the
// input did not change.
func (s *Supervisor) SetInput(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input == s.input {
		return false
	}
	s.input = input
	s.logger.Info("Input changed", "input", redactURL(input))

	stopped := false
	if s.handle != nil {
		s.stopLocked(ReasonInputChanged)
		stopped = true
	}
	s.bus.Publish(events.InputChangedEvent{
		Configured: input != "",
		Stopped:    stopped,
		Timestamp:  s.now().Format(time.RFC3339),
	})
	return true
}

// InputConfigured reports whether an input source is set.
func (s *Supervisor) InputConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input != ""
}

// launchErrorCode maps a failure to execute the binary to a shell-style code.
func launchErrorCode(err error) int {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return 127
	}
	if errors.Is(err, fs.ErrPermission) {
		return 126
	}
	return 1
}

// redactURL hides credentials in input URLs before logging them.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
