package hls

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func fastWait() WaitOptions {
	return WaitOptions{Timeout: 300 * time.Millisecond, Interval: 20 * time.Millisecond}
}

func alwaysAlive() bool { return true }

func TestWaitForFileAlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	writeFile(t, path, "#EXTM3U\n")

	if got := WaitForFile(context.Background(), path, fastWait(), alwaysAlive); got != WaitReady {
		t.Errorf("expected ready, got %s", got)
	}
}

func TestWaitForFileAppearsLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = os.WriteFile(path, []byte("#EXTM3U\n"), 0o644)
	}()

	if got := WaitForFile(context.Background(), path, fastWait(), alwaysAlive); got != WaitReady {
		t.Errorf("expected ready, got %s", got)
	}
}

func TestWaitForFileTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.ts")

	start := time.Now()
	got := WaitForFile(context.Background(), path, fastWait(), alwaysAlive)
	if got != WaitTimedOut {
		t.Errorf("expected timed out, got %s", got)
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("unexpected wait duration %v", elapsed)
	}
}

func TestWaitForFileProcessDies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	var polls atomic.Int32
	alive := func() bool { return polls.Add(1) < 3 }

	start := time.Now()
	if got := WaitForFile(context.Background(), path, fastWait(), alive); got != WaitProcessDied {
		t.Errorf("expected process died, got %s", got)
	}
	if elapsed := time.Since(start); elapsed >= 300*time.Millisecond {
		t.Errorf("expected early return, took %v", elapsed)
	}
}

func TestWaitForFilePrefersFileOverDeadProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	writeFile(t, path, "#EXTM3U\n")

	if got := WaitForFile(context.Background(), path, fastWait(), func() bool { return false }); got != WaitReady {
		t.Errorf("expected ready, got %s", got)
	}
}

func TestWaitForFileCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := WaitOptions{Timeout: 5 * time.Second, Interval: time.Second}
	if got := WaitForFile(ctx, path, opts, alwaysAlive); got != WaitCancelled {
		t.Errorf("expected cancelled, got %s", got)
	}
}

func TestWaitForFileIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if got := WaitForFile(context.Background(), dir, fastWait(), alwaysAlive); got != WaitTimedOut {
		t.Errorf("expected directory to be ignored, got %s", got)
	}
}
