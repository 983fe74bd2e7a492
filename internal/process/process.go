package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyCommand is returned by Start when no program is given.
var ErrEmptyCommand = errors.New("empty command")

// StopOutcome describes how a termination request ended.
type StopOutcome int

const (
	// StopAlreadyExited means the process had exited before any signal was sent.
	StopAlreadyExited StopOutcome = iota
	// StopAlreadyGone means the process group no longer existed when signalled.
	StopAlreadyGone
	// StopGraceful means the process exited within the grace period after SIGTERM.
	StopGraceful
	// StopKilled means SIGKILL was required.
	StopKilled
	// StopUnconfirmed means the process did not exit even after SIGKILL.
	StopUnconfirmed
)

func (o StopOutcome) String() string {
	switch o {
	case StopAlreadyExited:
		return "already_exited"
	case StopAlreadyGone:
		return "already_gone"
	case StopGraceful:
		return "graceful"
	case StopKilled:
		return "killed"
	case StopUnconfirmed:
		return "unconfirmed"
	}
	return "unknown"
}

// Options configures how a process is started and how its output is drained.
type Options struct {
	Logger       *slog.Logger  // lifecycle logs (required)
	OutputLogger *slog.Logger  // process output (nil = Logger)
	LogParser    LogParser     // parses output lines for log level (nil = no parsing)
	Output       OutputHandler // receives every output line (optional)
	TailLines    int           // lines kept for diagnostics (default 20)
	Dir          string
	Env          []string
}

// Handle owns one running subprocess and its output drainers.
// The subprocess is started as the leader of a new process group so that
// signals reach every child it spawns.
type Handle struct {
	RunID     string
	Args      []string
	StartedAt time.Time

	cmd    *exec.Cmd
	pid    int
	logger *slog.Logger

	done     chan struct{}
	exitMu   sync.Mutex
	exitErr  error
	exitCode int
	exitedAt time.Time

	stdout  *os.File
	stderr  *os.File
	drained chan struct{}
	tail    *Tail
}

// Start launches args[0] with the remaining arguments in a new process group.
// Stdout and stderr are drained by background goroutines from the moment
// Start returns.
func Start(args []string, opts Options) (*Handle, error) {
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tailLines := opts.TailLines
	if tailLines <= 0 {
		tailLines = 20
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	h := &Handle{
		RunID:     uuid.NewString(),
		Args:      args,
		StartedAt: time.Now(),
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		logger:    logger.With("pid", cmd.Process.Pid),
		done:      make(chan struct{}),
		stdout:    stdoutR,
		stderr:    stderrR,
		drained:   make(chan struct{}),
		tail:      NewTail(tailLines),
	}

	outLogger := opts.OutputLogger
	if outLogger == nil {
		outLogger = logger
	}
	d := &drainer{
		logger:    outLogger,
		errLogger: h.logger,
		parser:    opts.LogParser,
		output:    opts.Output,
		tail:      h.tail,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.drain(stdoutR, "stdout")
	}()
	go func() {
		defer wg.Done()
		d.drain(stderrR, "stderr")
	}()
	go func() {
		wg.Wait()
		close(h.drained)
	}()

	go h.wait()

	h.logger.Info("Process started", "run_id", h.RunID, "command", args[0])
	return h, nil
}

// wait reaps the process and records its exit status.
func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.exitMu.Lock()
	h.exitErr = err
	h.exitCode = exitCodeFromError(err)
	h.exitedAt = time.Now()
	h.exitMu.Unlock()
	close(h.done)
}

// PID returns the process ID, which is also the process group ID.
func (h *Handle) PID() int {
	return h.pid
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Alive reports whether the process has not yet exited.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code and whether the process has exited.
// A process killed by a signal reports 128 plus the signal number.
func (h *Handle) ExitCode() (int, bool) {
	if h.Alive() {
		return 0, false
	}
	h.exitMu.Lock()
	defer h.exitMu.Unlock()
	return h.exitCode, true
}

// ExitError returns the error reported by the wait call, if any.
func (h *Handle) ExitError() error {
	if h.Alive() {
		return nil
	}
	h.exitMu.Lock()
	defer h.exitMu.Unlock()
	return h.exitErr
}

// Uptime returns how long the process ran, or has been running.
func (h *Handle) Uptime() time.Duration {
	if h.Alive() {
		return time.Since(h.StartedAt)
	}
	h.exitMu.Lock()
	defer h.exitMu.Unlock()
	return h.exitedAt.Sub(h.StartedAt)
}

// Tail returns the most recent output lines, oldest first.
func (h *Handle) Tail() []string {
	return h.tail.Lines()
}

// Terminate stops the whole process group: SIGTERM, then SIGKILL if the
// process is still alive after grace, then waits up to killWait for the exit
// to be observed.
func (h *Handle) Terminate(grace, killWait time.Duration) StopOutcome {
	if !h.Alive() {
		return StopAlreadyExited
	}

	h.logger.Info("Sending SIGTERM to process group", "pgid", h.pid)
	if err := h.signalGroup(syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			h.logger.Debug("Process group already gone")
			h.waitExit(killWait)
			return StopAlreadyGone
		}
		h.logger.Warn("Failed to send SIGTERM", "error", err)
	}

	if h.waitExit(grace) {
		return StopGraceful
	}

	h.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", grace)
	if err := h.signalGroup(syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		h.logger.Error("Failed to send SIGKILL", "error", err)
	}

	if h.waitExit(killWait) {
		return StopKilled
	}
	h.logger.Error("Process did not exit after kill signal", "timeout", killWait)
	return StopUnconfirmed
}

// WaitDrained waits for both output drainers to finish. If they are still
// running after timeout (for example a grandchild kept the pipe open), the
// read ends are closed to force them out. Returns false in that case.
func (h *Handle) WaitDrained(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.drained:
		return true
	case <-timer.C:
	}

	h.logger.Warn("Output drainers still running, closing pipes", "timeout", timeout)
	closeAll(h.stdout, h.stderr)
	select {
	case <-h.drained:
	case <-time.After(timeout):
		h.logger.Error("Output drainers did not exit after closing pipes")
	}
	return false
}

func (h *Handle) signalGroup(sig syscall.Signal) error {
	return syscall.Kill(-h.pid, sig)
}

func (h *Handle) waitExit(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, 128+signal for signalled processes, the exit code
// for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
