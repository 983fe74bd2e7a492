package ffmpeg

import (
	"log/slog"
	"strings"
)

// Severity tags printed by -loglevel level+info.
var logLevels = map[string]slog.Level{
	"quiet":   slog.LevelError,
	"panic":   slog.LevelError,
	"fatal":   slog.LevelError,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"verbose": slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"trace":   slog.LevelDebug,
}

// ParseLogLevel maps the severity tag of an ffmpeg output line to a slog
// level and strips it from the message. A leading component tag such as
// "[hls @ 0x55d0]" stays in the message. Untagged lines, like the periodic
// stats line, are info.
func ParseLogLevel(line string) (slog.Level, string) {
	var component string
	rest := line
	for range 2 {
		tag, after, ok := cutTag(rest)
		if !ok {
			break
		}
		if level, known := logLevels[tag]; known {
			return level, component + after
		}
		component = rest[:len(rest)-len(after)]
		rest = after
	}
	return slog.LevelInfo, line
}

// cutTag splits "[tag] rest" into tag and rest.
func cutTag(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	return strings.Cut(s[1:], "] ")
}
