// Package ffmpeg builds the ffmpeg command line that repackages a live input
// as HLS, and parses ffmpeg's leveled log output.
package ffmpeg
