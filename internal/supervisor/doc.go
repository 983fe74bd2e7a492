// Package supervisor runs ffmpeg on demand.
//
// The first HLS request calls EnsureRunning, which launches ffmpeg as a new
// process group and waits through a short startup window to catch inputs
// that fail immediately. Every request calls Touch. Run checks periodically
// and stops ffmpeg (SIGTERM, then SIGKILL) once no request has touched it
// for the inactivity timeout, and reconciles processes that died on their
// own so the next request starts a fresh one.
//
// Example:
//
//	sup := supervisor.New(supervisor.Config{
//	    Layout:  layout,
//	    Command: func(input string) ([]string, error) { return ffmpeg.BuildArgs(params(input)) },
//	}, inputURL, supervisor.Options{Logger: logger})
//	go sup.Run(ctx)
//	defer sup.Shutdown()
//
//	sup.Touch()
//	if _, err := sup.EnsureRunning(r.Context()); err != nil {
//	    // ErrNoInputConfigured or *ImmediateExitError
//	}
package supervisor
