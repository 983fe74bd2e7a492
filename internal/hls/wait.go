package hls

import (
	"context"
	"os"
	"time"
)

// WaitOutcome is the result of waiting for an artifact to appear.
type WaitOutcome int

const (
	WaitReady WaitOutcome = iota
	WaitTimedOut
	WaitProcessDied
	WaitCancelled
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitReady:
		return "ready"
	case WaitTimedOut:
		return "timed_out"
	case WaitProcessDied:
		return "process_died"
	case WaitCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Default wait settings.
const (
	DefaultWaitTimeout  = 5 * time.Second
	DefaultWaitInterval = 500 * time.Millisecond
)

// WaitOptions bounds a WaitForFile call.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultWaitTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultWaitInterval
	}
	return o
}

// WaitForFile polls until path exists as a regular file. Between polls it
// checks alive and gives up early with WaitProcessDied once the producer is
// gone. The file check always happens before the liveness check, so a file
// written by a process that has since exited is still reported ready.
func WaitForFile(ctx context.Context, path string, opts WaitOptions, alive func() bool) WaitOutcome {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if fileExists(path) {
			return WaitReady
		}
		if alive != nil && !alive() {
			return WaitProcessDied
		}
		if !time.Now().Before(deadline) {
			return WaitTimedOut
		}

		select {
		case <-ctx.Done():
			return WaitCancelled
		case <-ticker.C:
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
