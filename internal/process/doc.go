// Package process starts and stops external programs as process groups.
//
// Start launches a program as the leader of a new process group with
// stdout and stderr drained line by line from the moment it returns:
//   - Liveness via a background wait, so exits are observed without polling
//   - Exit codes with 128+signal for signalled processes
//   - Terminate sends SIGTERM to the group, then SIGKILL after a grace period
//   - Output lines leveled by a pluggable LogParser and kept in a short tail
//   - Optional raw output file with rotation (FileOutput)
//
// Example:
//
//	h, err := process.Start([]string{"ffmpeg", "-i", url, "out.m3u8"}, process.Options{
//	    Logger:    logger,
//	    LogParser: ffmpeg.ParseLogLevel,
//	})
//	if err != nil {
//	    return err
//	}
//	defer h.WaitDrained(time.Second)
//	h.Terminate(10*time.Second, 2*time.Second)
package process
