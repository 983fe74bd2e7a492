package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// OutputHandler receives output lines from the subprocess.
// Implementations can write them to a file, publish them as events, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// OutputHandlerFunc adapts a function to OutputHandler.
type OutputHandlerFunc func(source, line string)

// HandleLine calls f(source, line).
func (f OutputHandlerFunc) HandleLine(source, line string) { f(source, line) }

// MultiOutput fans lines out to several handlers. Nil handlers are skipped.
func MultiOutput(handlers ...OutputHandler) OutputHandler {
	var hs []OutputHandler
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	switch len(hs) {
	case 0:
		return nil
	case 1:
		return hs[0]
	}
	return OutputHandlerFunc(func(source, line string) {
		for _, h := range hs {
			h.HandleLine(source, line)
		}
	})
}

// LogParser picks the log level for an output line and returns the
// message to log.
type LogParser func(line string) (slog.Level, string)

const maxLineSize = 1024 * 1024

type drainer struct {
	logger    *slog.Logger
	errLogger *slog.Logger
	parser    LogParser
	output    OutputHandler
	tail      *Tail
}

// drain reads lines from reader until EOF or error and closes it.
func (d *drainer) drain(reader io.ReadCloser, source string) {
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		d.tail.Add(line)
		if d.output != nil {
			d.output.HandleLine(source, line)
		}

		level, msg := slog.LevelInfo, line
		if d.parser != nil {
			level, msg = d.parser(line)
		}
		d.logger.Log(context.Background(), level, msg, "source", source)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, os.ErrClosed) {
			d.errLogger.Debug("Output pipe closed", "source", source)
			return
		}
		d.errLogger.Warn("Error reading output", "source", source, "error", err)
	}
}

// Tail keeps the last N lines written to it.
type Tail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewTail creates a tail buffer holding up to size lines.
func NewTail(size int) *Tail {
	if size <= 0 {
		size = 1
	}
	return &Tail{lines: make([]string, size)}
}

// Add appends a line, evicting the oldest when full.
func (t *Tail) Add(line string) {
	t.mu.Lock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
}

// Lines returns the buffered lines, oldest first.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		out := make([]string, t.next)
		copy(out, t.lines[:t.next])
		return out
	}
	out := make([]string, 0, len(t.lines))
	out = append(out, t.lines[t.next:]...)
	out = append(out, t.lines[:t.next]...)
	return out
}

// Default rotation settings for FileOutput.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// FileOutputConfig describes a rotating output file.
type FileOutputConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileOutput writes raw process output to a rotating log file.
type FileOutput struct {
	mu     sync.Mutex
	writer io.WriteCloser
	logger *slog.Logger
}

// NewFileOutput creates a FileOutput. The file is opened lazily on first write.
func NewFileOutput(cfg FileOutputConfig, logger *slog.Logger) *FileOutput {
	return &FileOutput{
		writer: &lj.Logger{
			Filename:   cfg.Path,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		},
		logger: logger,
	}
}

// HandleLine writes one line prefixed with its source stream.
func (f *FileOutput) HandleLine(source, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := fmt.Fprintf(f.writer, "%s: %s\n", source, line); err != nil && f.logger != nil {
		f.logger.Warn("Failed to write process output", "error", err)
	}
}

// Close closes the underlying file.
func (f *FileOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.Close()
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
