package events

// Event type constants for kelindar/event.
const (
	TypeProcessStarted uint32 = iota + 1
	TypeProcessStopped
	TypeProcessCrashed
	TypeStartFailed
	TypeInputChanged
	TypeLogEntry
	TypeProgress
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessStartedEvent is published after ffmpeg survives its startup window.
type ProcessStartedEvent struct {
	RunID     string `json:"run_id" example:"5f0c6f5e-2b7e-4a57-9d55-8f3c3d3b1a11" doc:"Unique identifier of this ffmpeg run"`
	PID       int    `json:"pid" example:"4242" doc:"Process ID (also the process group ID)"`
	Restarted bool   `json:"restarted" doc:"True if a dead process was replaced"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessStartedEvent.
func (e ProcessStartedEvent) Type() uint32 { return TypeProcessStarted }

// ProcessStoppedEvent is published after a requested stop completes.
type ProcessStoppedEvent struct {
	RunID     string `json:"run_id" doc:"Unique identifier of the stopped run"`
	PID       int    `json:"pid" example:"4242" doc:"Process ID"`
	Reason    string `json:"reason" example:"inactive" doc:"Why the process was stopped: inactive, requested, shutdown, input_changed"`
	Outcome   string `json:"outcome" example:"graceful" doc:"How termination ended: graceful, killed, already_gone, already_exited, unconfirmed"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Exit code, 128+signal if signalled"`
	Uptime    string `json:"uptime" example:"1m30s" doc:"How long the process ran"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessStoppedEvent.
func (e ProcessStoppedEvent) Type() uint32 { return TypeProcessStopped }

// ProcessCrashedEvent is published when ffmpeg is found dead without having been stopped.
type ProcessCrashedEvent struct {
	RunID     string   `json:"run_id" doc:"Unique identifier of the crashed run"`
	PID       int      `json:"pid" example:"4242" doc:"Process ID"`
	ExitCode  int      `json:"exit_code" example:"1" doc:"Exit code, 128+signal if signalled"`
	Output    []string `json:"output,omitempty" doc:"Last output lines before the crash"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessCrashedEvent.
func (e ProcessCrashedEvent) Type() uint32 { return TypeProcessCrashed }

// StartFailedEvent is published when a launch attempt fails.
type StartFailedEvent struct {
	Reason    string   `json:"reason" example:"immediate_exit" doc:"no_input or immediate_exit"`
	ExitCode  int      `json:"exit_code,omitempty" example:"1" doc:"Exit code for immediate exits"`
	Error     string   `json:"error" doc:"Error description"`
	Output    []string `json:"output,omitempty" doc:"Last output lines before the exit"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StartFailedEvent.
func (e StartFailedEvent) Type() uint32 { return TypeStartFailed }

// InputChangedEvent is published when the input source is replaced at runtime.
type InputChangedEvent struct {
	Configured bool   `json:"configured" doc:"Whether an input URL is now configured"`
	Stopped    bool   `json:"stopped" doc:"Whether a running process was stopped to pick up the change"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for InputChangedEvent.
func (e InputChangedEvent) Type() uint32 { return TypeInputChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// ProgressEvent carries the latest ffmpeg -progress values.
type ProgressEvent struct {
	Frame           int64  `json:"frame" example:"1200" doc:"Frames processed in the current run"`
	FPS             string `json:"fps" example:"29.97" doc:"Current encoding FPS"`
	Speed           string `json:"speed" example:"1.00" doc:"Processing speed multiplier"`
	DroppedFrames   string `json:"dropped_frames" example:"0" doc:"Dropped frames"`
	DuplicateFrames string `json:"duplicate_frames" example:"0" doc:"Duplicate frames"`
	OutTime         string `json:"out_time,omitempty" example:"00:00:40.000000" doc:"Output timestamp"`
	Timestamp       string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProgressEvent.
func (e ProgressEvent) Type() uint32 { return TypeProgress }
