package supervisor

import (
	"context"
	"time"
)

// Run stops ffmpeg after InactivityTimeout without a Touch and reconciles
// processes that died on their own. It returns when ctx is cancelled; a
// check in progress always completes first.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	s.logger.Debug("Inactivity checker started",
		"interval", s.cfg.ReapInterval,
		"timeout", s.cfg.InactivityTimeout)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Inactivity checker stopped")
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

// reap runs one inactivity check.
func (s *Supervisor) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}
	if !s.handle.Alive() {
		s.reconcileDeadLocked()
		return
	}

	idle := s.activity.IdleFor(s.now())
	if idle <= s.cfg.InactivityTimeout {
		return
	}
	s.logger.Info("No HLS activity, stopping ffmpeg",
		"idle", idle.Round(time.Second),
		"timeout", s.cfg.InactivityTimeout)
	s.stopLocked(ReasonInactive)
}
