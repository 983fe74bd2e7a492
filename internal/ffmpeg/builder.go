package ffmpeg

import (
	"errors"
	"strconv"
)

// ErrNoInput is returned when no input URL is set.
var ErrNoInput = errors.New("input url is required")

// DefaultBinary is used when Params.Binary is empty.
const DefaultBinary = "ffmpeg"

// Base returns the binary and the flags every invocation carries.
// level+info prefixes each log line with its severity for ParseLogLevel.
func Base(binary string) []string {
	if binary == "" {
		binary = DefaultBinary
	}
	return []string{binary, "-hide_banner", "-nostdin", "-loglevel", "level+info"}
}

// BuildArgs builds the argv that copies the input into an HLS playlist.
func BuildArgs(p *Params) ([]string, error) {
	if p.InputURL == "" {
		return nil, ErrNoInput
	}
	if p.OutputPath == "" {
		return nil, errors.New("output path is required")
	}

	args := Base(p.Binary)

	if p.ProgressSocket != "" {
		args = append(args, "-progress", "unix://"+p.ProgressSocket)
	}

	in, fflags := inputArgs(p.Options, p.InputURL)
	args = append(args, in...)
	if fflags != "" {
		args = append(args, "-fflags", fflags)
	}
	args = append(args, "-i", p.InputURL)
	args = append(args, outputArgs(p.Options)...)

	args = append(args, "-c", "copy")
	args = append(args, p.ExtraArgs...)

	args = append(args, "-f", "hls")
	if p.HLSTime > 0 {
		args = append(args, "-hls_time", strconv.Itoa(p.HLSTime))
	}
	if p.HLSListSize >= 0 {
		args = append(args, "-hls_list_size", strconv.Itoa(p.HLSListSize))
	}
	if p.HLSFlags != "" {
		args = append(args, "-hls_flags", p.HLSFlags)
	}
	args = append(args, p.OutputPath)

	return args, nil
}
