package process

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sh(script string) []string {
	return []string{"sh", "-c", script}
}

// startTest starts a process and registers cleanup that kills its group.
func startTest(t *testing.T, args []string, opts Options) *Handle {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	h, err := Start(args, opts)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		_ = syscall.Kill(-h.PID(), syscall.SIGKILL)
		h.WaitDrained(time.Second)
	})
	return h
}

// waitDone waits for the process to exit, fails test on timeout.
func waitDone(t *testing.T, h *Handle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

// processGone reports whether pid no longer exists or is a zombie.
func processGone(pid int) bool {
	if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
		return true
	}
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return true
	}
	return strings.Contains(string(data), ") Z ")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStartEmptyCommand(t *testing.T) {
	if _, err := Start(nil, Options{Logger: testLogger()}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start([]string{"/nonexistent/ffmpeg-binary"}, Options{Logger: testLogger()})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	h := startTest(t, sh("exit 3"), Options{})
	waitDone(t, h, 2*time.Second)

	code, exited := h.ExitCode()
	if !exited {
		t.Fatal("expected process to have exited")
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if h.Alive() {
		t.Error("expected Alive() to be false after exit")
	}
}

func TestAliveWhileRunning(t *testing.T) {
	h := startTest(t, sh("sleep 10"), Options{})
	if !h.Alive() {
		t.Error("expected process to be alive")
	}
	if _, exited := h.ExitCode(); exited {
		t.Error("expected no exit code while running")
	}
	if h.RunID == "" {
		t.Error("expected run id to be set")
	}
}

func TestTerminateGraceful(t *testing.T) {
	h := startTest(t, sh("trap 'exit 0' TERM; while :; do sleep 0.1; done"), Options{})
	time.Sleep(100 * time.Millisecond)

	outcome := h.Terminate(2*time.Second, time.Second)
	if outcome != StopGraceful {
		t.Errorf("expected graceful stop, got %s", outcome)
	}
	if code, _ := h.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestTerminateForceKill(t *testing.T) {
	h := startTest(t, sh("trap '' TERM; sleep 10"), Options{})
	time.Sleep(100 * time.Millisecond)

	outcome := h.Terminate(100*time.Millisecond, time.Second)
	if outcome != StopKilled {
		t.Errorf("expected killed, got %s", outcome)
	}
	// 128 + 9 for SIGKILL
	if code, _ := h.ExitCode(); code != 137 {
		t.Errorf("expected exit code 137, got %d", code)
	}
}

func TestTerminateSignalsWholeGroup(t *testing.T) {
	var mu sync.Mutex
	var childPID int
	out := OutputHandlerFunc(func(source, line string) {
		if pid, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
			mu.Lock()
			childPID = pid
			mu.Unlock()
		}
	})

	h := startTest(t, sh("sleep 30 & echo $!; wait"), Options{Output: out})

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		pid := childPID
		mu.Unlock()
		if pid != 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child pid was never printed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if outcome := h.Terminate(2*time.Second, time.Second); outcome != StopGraceful {
		t.Errorf("expected graceful stop, got %s", outcome)
	}

	mu.Lock()
	pid := childPID
	mu.Unlock()
	deadline = time.Now().Add(2 * time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("child process %d survived group termination", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestTerminateAlreadyExited(t *testing.T) {
	h := startTest(t, sh("exit 0"), Options{})
	waitDone(t, h, 2*time.Second)

	if outcome := h.Terminate(time.Second, time.Second); outcome != StopAlreadyExited {
		t.Errorf("expected already exited, got %s", outcome)
	}
}

func TestOutputDrained(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	out := OutputHandlerFunc(func(source, line string) {
		mu.Lock()
		lines = append(lines, source+":"+line)
		mu.Unlock()
	})

	h := startTest(t, sh("echo hello; echo oops >&2; echo; echo bye"), Options{Output: out})
	waitDone(t, h, 2*time.Second)
	if !h.WaitDrained(time.Second) {
		t.Fatal("expected drainers to finish")
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string]bool{"stdout:hello": true, "stderr:oops": true, "stdout:bye": true}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines (empty lines skipped), got %v", len(want), lines)
	}
	for _, l := range lines {
		if !want[l] {
			t.Errorf("unexpected line %q", l)
		}
	}

	tail := h.Tail()
	if len(tail) != 3 {
		t.Errorf("expected 3 tail lines, got %v", tail)
	}
}

func TestWaitDrainedClosesPipesHeldByGrandchild(t *testing.T) {
	// The background sleep inherits stdout and keeps it open after sh exits.
	h := startTest(t, sh("sleep 5 & exit 0"), Options{})
	waitDone(t, h, 2*time.Second)

	start := time.Now()
	if h.WaitDrained(100 * time.Millisecond) {
		t.Error("expected drainers to be forced out")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitDrained took too long: %v", elapsed)
	}
}

func TestOutputLeveledByParser(t *testing.T) {
	buf := &syncBuffer{}
	outLogger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	levels := map[string]slog.Level{"error": slog.LevelError, "warning": slog.LevelWarn, "debug": slog.LevelDebug}
	parser := func(line string) (slog.Level, string) {
		tag, msg, ok := strings.Cut(line, " ")
		if level, known := levels[tag]; ok && known {
			return level, msg
		}
		return slog.LevelInfo, line
	}

	h := startTest(t, sh("echo 'error broken'; echo 'warning careful'; echo 'debug noisy'; echo plain"), Options{
		OutputLogger: outLogger,
		LogParser:    parser,
	})
	waitDone(t, h, 2*time.Second)
	h.WaitDrained(time.Second)

	out := buf.String()
	tests := []struct {
		level string
		msg   string
	}{
		{"ERROR", "broken"},
		{"WARN", "careful"},
		{"DEBUG", "noisy"},
		{"INFO", "plain"},
	}
	for _, tt := range tests {
		if !strings.Contains(out, "level="+tt.level+" msg="+tt.msg) {
			t.Errorf("expected %s line for %q in output:\n%s", tt.level, tt.msg, out)
		}
	}
}

func TestTail(t *testing.T) {
	tail := NewTail(3)
	if got := tail.Lines(); len(got) != 0 {
		t.Errorf("expected empty tail, got %v", got)
	}

	for _, l := range []string{"a", "b"} {
		tail.Add(l)
	}
	if got := strings.Join(tail.Lines(), ","); got != "a,b" {
		t.Errorf("expected a,b got %s", got)
	}

	for _, l := range []string{"c", "d", "e"} {
		tail.Add(l)
	}
	if got := strings.Join(tail.Lines(), ","); got != "c,d,e" {
		t.Errorf("expected c,d,e got %s", got)
	}
}

func TestMultiOutput(t *testing.T) {
	if MultiOutput(nil, nil) != nil {
		t.Error("expected nil handler when all inputs are nil")
	}

	var a, b int
	h := MultiOutput(
		OutputHandlerFunc(func(string, string) { a++ }),
		nil,
		OutputHandlerFunc(func(string, string) { b++ }),
	)
	h.HandleLine("stdout", "x")
	if a != 1 || b != 1 {
		t.Errorf("expected both handlers called once, got %d %d", a, b)
	}
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/ffmpeg.log"
	f := NewFileOutput(FileOutputConfig{Path: path}, testLogger())
	f.HandleLine("stderr", "frame=1")
	f.HandleLine("stdout", "done")
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if got := string(data); got != "stderr: frame=1\nstdout: done\n" {
		t.Errorf("unexpected file content %q", got)
	}
}

func TestExitCodeFromError(t *testing.T) {
	if code := exitCodeFromError(nil); code != 0 {
		t.Errorf("expected 0 for nil error, got %d", code)
	}
	if code := exitCodeFromError(errors.New("boom")); code != 1 {
		t.Errorf("expected 1 for generic error, got %d", code)
	}

	err := exec.Command("sh", "-c", "exit 7").Run()
	if code := exitCodeFromError(err); code != 7 {
		t.Errorf("expected 7, got %d", code)
	}
}

func TestStats(t *testing.T) {
	h := startTest(t, sh("sleep 10"), Options{})
	s, err := h.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.MemoryRSS == 0 {
		t.Error("expected non-zero RSS")
	}
}
