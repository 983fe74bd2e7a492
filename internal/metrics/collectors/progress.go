// Package collectors gathers runtime data from ffmpeg into the metrics package.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/hlsnode/internal/metrics"
)

// ProgressCollector receives ffmpeg "-progress unix://<socket>" output.
// It listens for the lifetime of the server; every ffmpeg run connects anew.
type ProgressCollector struct {
	logger     *slog.Logger
	socketPath string
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewProgressCollector creates a new progress collector.
func NewProgressCollector(socketPath string, logger *slog.Logger) *ProgressCollector {
	return &ProgressCollector{
		logger:     logger.With("component", "progress_collector"),
		socketPath: socketPath,
	}
}

// SocketPath returns the unix socket ffmpeg should report to.
func (c *ProgressCollector) SocketPath() string {
	return c.socketPath
}

// Start removes any stale socket file and begins accepting connections.
func (c *ProgressCollector) Start(ctx context.Context) error {
	if err := os.Remove(c.socketPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("listen on progress socket: %w", err)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.listener = listener
	c.logger.Info("Listening for ffmpeg progress", "socket", c.socketPath)

	c.wg.Add(1)
	go c.acceptLoop()
	return nil
}

// Stop closes the listener, removes the socket file and resets progress metrics.
func (c *ProgressCollector) Stop() error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.listener != nil {
			if err := c.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				stopErr = err
			}
			c.wg.Wait()
		}
		_ = os.Remove(c.socketPath)
		metrics.ResetProgress()
	})
	return stopErr
}

func (c *ProgressCollector) acceptLoop() {
	defer c.wg.Done()

	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("Error accepting connection", "error", err)
			continue
		}
		go c.handleConnection(conn)
	}
}

func (c *ProgressCollector) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Unblock the scanner when the collector stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-c.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	progressData := make(map[string]string)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		progressData[key] = strings.TrimSpace(value)

		if key == "progress" {
			applyProgress(progressData)
			if progressData["progress"] == "end" {
				metrics.ResetProgress()
			}
			progressData = make(map[string]string)
		}
	}
}

func applyProgress(data map[string]string) {
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		metrics.SetFFmpegFPS(fps)
	}
	if dropped, err := strconv.ParseFloat(data["drop_frames"], 64); err == nil {
		metrics.SetFFmpegDroppedFrames(dropped)
	}
	if dup, err := strconv.ParseFloat(data["dup_frames"], 64); err == nil {
		metrics.SetFFmpegDuplicateFrames(dup)
	}
	speedStr := strings.TrimSuffix(data["speed"], "x")
	if speed, err := strconv.ParseFloat(strings.TrimSpace(speedStr), 64); err == nil {
		metrics.SetFFmpegSpeed(speed)
	}
	if frame, err := strconv.ParseInt(data["frame"], 10, 64); err == nil {
		metrics.SetFFmpegPosition(frame, data["out_time"])
	}
}
