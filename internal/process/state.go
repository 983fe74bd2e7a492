package process

// State represents the lifecycle state of a supervised process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not running
	StateStarting State = "starting" // Launched, startup window not yet passed
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Termination in progress
	StateCrashed  State = "crashed"  // Exited without being asked to
)
