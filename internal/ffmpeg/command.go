package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// SplitArgs splits a command line into arguments with POSIX shell quoting
// rules. A line with nothing but whitespace yields nil.
func SplitArgs(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}

// FormatArgs joins args into a single shell-style line for display.
func FormatArgs(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'\\") {
			parts[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
			continue
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}
