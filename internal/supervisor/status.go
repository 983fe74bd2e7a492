package supervisor

import (
	"errors"
	"time"

	"github.com/smazurov/hlsnode/internal/process"
)

// ErrNotRunning is returned by Stats when no process is running.
var ErrNotRunning = errors.New("ffmpeg is not running")

// ExitInfo describes how the previous process ended.
type ExitInfo struct {
	RunID  string
	Code   int
	Reason string // crashed, immediate_exit, or a StopReason
	At     time.Time
	Output []string
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	State           process.State
	Running         bool
	PID             int
	RunID           string
	StartedAt       time.Time
	Uptime          time.Duration
	LastActivity    time.Time
	Idle            time.Duration
	InactivityLimit time.Duration
	InputConfigured bool
	Launches        int
	Crashes         int
	LastExit        *ExitInfo
}

// Status returns a snapshot of the supervisor state.
func (s *Supervisor) Status() Status {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:           s.state,
		LastActivity:    s.activity.Last(),
		Idle:            s.activity.IdleFor(now),
		InactivityLimit: s.cfg.InactivityTimeout,
		InputConfigured: s.input != "",
		Launches:        s.launches,
		Crashes:         s.crashes,
	}
	if s.lastExit != nil {
		exit := *s.lastExit
		st.LastExit = &exit
	}
	if h := s.handle; h != nil {
		st.PID = h.PID()
		st.RunID = h.RunID
		st.StartedAt = h.StartedAt
		st.Uptime = h.Uptime()
		st.Running = h.Alive()
		if !st.Running {
			// Exited but not yet reconciled by a request or the reaper.
			st.State = process.StateCrashed
		}
	}
	return st
}

// Stats samples resource usage of the running process.
func (s *Supervisor) Stats() (process.Stats, error) {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	if h == nil || !h.Alive() {
		return process.Stats{}, ErrNotRunning
	}
	return h.Stats()
}
