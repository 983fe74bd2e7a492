package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoInputConfigured is returned by EnsureRunning when no input source is set.
var ErrNoInputConfigured = errors.New("stream input URL not configured")

// ImmediateExitError reports that ffmpeg exited within the startup window,
// or could not be executed at all.
type ImmediateExitError struct {
	Code   int      // exit code; 127 when the binary could not be executed
	Output []string // last output lines
	Err    error    // launch error, if the process never started
}

func (e *ImmediateExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ffmpeg failed to start (code %d): %v", e.Code, e.Err)
	}
	if len(e.Output) > 0 {
		return fmt.Sprintf("ffmpeg exited immediately with code %d: %s", e.Code, e.Output[len(e.Output)-1])
	}
	return fmt.Sprintf("ffmpeg exited immediately with code %d", e.Code)
}

func (e *ImmediateExitError) Unwrap() error {
	return e.Err
}

// Diagnostics returns the captured output as a single block.
func (e *ImmediateExitError) Diagnostics() string {
	return strings.Join(e.Output, "\n")
}
