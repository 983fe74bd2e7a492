package models

// HealthData represents health check response data
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Body HealthData
}

// VersionData represents version information
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS and architecture"`
}

// VersionResponse represents the version endpoint response
type VersionResponse struct {
	Body VersionData
}

// LastExit describes how the previous ffmpeg process ended.
type LastExit struct {
	RunID    string   `json:"run_id" doc:"Run identifier of the exited process"`
	ExitCode int      `json:"exit_code" example:"1" doc:"Exit code, 128+signal when killed"`
	Reason   string   `json:"reason" example:"inactive" enum:"crashed,immediate_exit,requested,inactive,shutdown,input_changed" doc:"Why the process ended"`
	At       string   `json:"at" example:"2025-01-27T10:00:00Z" doc:"When the exit was recorded"`
	Output   []string `json:"output,omitempty" doc:"Last output lines, for crashes"`
}

// ProcessStats is a resource usage snapshot of the running ffmpeg process.
type ProcessStats struct {
	CPUPercent float64 `json:"cpu_percent" example:"12.5" doc:"CPU usage since start"`
	MemoryRSS  uint64  `json:"memory_rss" example:"52428800" doc:"Resident memory in bytes"`
	Memory     string  `json:"memory" example:"50 MiB" doc:"Resident memory, human readable"`
	NumThreads int32   `json:"num_threads" example:"9" doc:"Thread count"`
	Children   int     `json:"children" example:"0" doc:"Child process count"`
}

// ProgressData is the latest progress reported by ffmpeg.
type ProgressData struct {
	Frame           int64   `json:"frame" example:"1200" doc:"Frames processed"`
	FPS             float64 `json:"fps" example:"25" doc:"Processing frame rate"`
	Speed           float64 `json:"speed" example:"1.0" doc:"Processing speed relative to realtime"`
	DroppedFrames   float64 `json:"dropped_frames" example:"0" doc:"Dropped frame count"`
	DuplicateFrames float64 `json:"duplicate_frames" example:"0" doc:"Duplicated frame count"`
	OutTime         string  `json:"out_time" example:"00:00:48.000000" doc:"Output position"`
}

// StatusData represents supervisor state
type StatusData struct {
	State             string        `json:"state" example:"running" enum:"idle,starting,running,stopping,crashed" doc:"Process state"`
	Running           bool          `json:"running" example:"true" doc:"Whether ffmpeg is alive"`
	PID               int           `json:"pid,omitempty" example:"4242" doc:"Process ID"`
	RunID             string        `json:"run_id,omitempty" doc:"Identifier of the current run"`
	StartedAt         string        `json:"started_at,omitempty" example:"2025-01-27T10:00:00Z" doc:"Process start time"`
	Uptime            string        `json:"uptime,omitempty" example:"5m3s" doc:"Time since start"`
	LastActivity      string        `json:"last_activity" example:"2025-01-27T10:05:00Z" doc:"Latest HLS request"`
	IdleSeconds       float64       `json:"idle_seconds" example:"3.2" doc:"Seconds since the latest HLS request"`
	InactivitySeconds float64       `json:"inactivity_timeout_seconds" example:"60" doc:"Idle time after which ffmpeg is stopped"`
	InputConfigured   bool          `json:"input_configured" example:"true" doc:"Whether an input URL is set"`
	Launches          int           `json:"launches" example:"3" doc:"Successful launches since server start"`
	Crashes           int           `json:"crashes" example:"1" doc:"Unexpected exits since server start"`
	LastExit          *LastExit     `json:"last_exit,omitempty" doc:"How the previous process ended"`
	Stats             *ProcessStats `json:"stats,omitempty" doc:"Resource usage of the running process"`
	Progress          *ProgressData `json:"progress,omitempty" doc:"Latest ffmpeg progress"`
}

// StatusResponse represents the status endpoint response
type StatusResponse struct {
	Body StatusData
}

// ProcessActionData is returned by start and stop.
type ProcessActionData struct {
	Result string     `json:"result" example:"started" enum:"already_running,started,restarted,stopped" doc:"What the request did"`
	Status StatusData `json:"status" doc:"State after the action"`
}

// ProcessActionResponse represents the start/stop response
type ProcessActionResponse struct {
	Body ProcessActionData
}
