package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthWithoutAuth(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	resp := ts.do(t, http.MethodGet, "/api/health", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body models.HealthData
	decodeJSON(t, resp, &body)
	if body.Status != "ok" {
		t.Errorf("health status = %q", body.Status)
	}
}

func TestServeAndStop(t *testing.T) {
	server := NewServer(&Options{Supervisor: &fakeController{}, EventBus: events.New()})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v after Stop", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStopBeforeStart(t *testing.T) {
	server := NewServer(&Options{Supervisor: &fakeController{}, EventBus: events.New()})
	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- server.Start("127.0.0.1:0") }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start after Stop = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start served after Stop")
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	resp := ts.do(t, http.MethodGet, "/api/status", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.SetBasicAuth("admin", "wrong")
	wrong, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer wrong.Body.Close()
	if wrong.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", wrong.StatusCode)
	}
}

func TestStatusAuthQueryParam(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	resp := ts.do(t, http.MethodGet, "/api/status?"+authQuery(), false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusReportsProcess(t *testing.T) {
	ts := newTestServer(t, &fakeController{running: true}, true)

	resp := ts.do(t, http.MethodGet, "/api/status", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body models.StatusData
	decodeJSON(t, resp, &body)

	if body.State != "running" || !body.Running || body.PID != 4242 {
		t.Errorf("state=%q running=%v pid=%d", body.State, body.Running, body.PID)
	}
	if body.InactivitySeconds != 60 {
		t.Errorf("inactivity = %v, want 60", body.InactivitySeconds)
	}
	if body.Stats == nil || body.Stats.Memory != "64 MiB" {
		t.Errorf("stats = %+v", body.Stats)
	}
}

func TestStatusIdleHasNoStats(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	resp := ts.do(t, http.MethodGet, "/api/status", false)
	var body models.StatusData
	decodeJSON(t, resp, &body)

	if body.State != "idle" || body.Running {
		t.Errorf("state=%q running=%v", body.State, body.Running)
	}
	if body.Stats != nil || body.StartedAt != "" {
		t.Errorf("idle status carries run data: %+v", body)
	}
}

func TestStartProcess(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	resp := ts.do(t, http.MethodPost, "/api/process/start", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body models.ProcessActionData
	decodeJSON(t, resp, &body)
	if body.Result != "started" || !body.Status.Running {
		t.Errorf("result=%q running=%v", body.Result, body.Status.Running)
	}

	touches, ensures, _ := ts.ctrl.counts()
	if touches != 1 || ensures != 1 {
		t.Errorf("touched=%d ensured=%d, want 1 and 1", touches, ensures)
	}

	resp = ts.do(t, http.MethodPost, "/api/process/start", true)
	decodeJSON(t, resp, &body)
	if body.Result != "already_running" {
		t.Errorf("second start result = %q, want already_running", body.Result)
	}
}

func TestStartProcessErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no input", supervisor.ErrNoInputConfigured, http.StatusInternalServerError},
		{"immediate exit", &supervisor.ImmediateExitError{Code: 1}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeController{startErr: tt.err}, false)

			resp := ts.do(t, http.MethodPost, "/api/process/start", false)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStopProcess(t *testing.T) {
	ts := newTestServer(t, &fakeController{running: true}, false)

	resp := ts.do(t, http.MethodPost, "/api/process/stop", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body models.ProcessActionData
	decodeJSON(t, resp, &body)
	if body.Result != "stopped" || body.Status.Running {
		t.Errorf("result=%q running=%v", body.Result, body.Status.Running)
	}
	if _, _, stops := ts.ctrl.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	resp := ts.do(t, http.MethodOptions, "/stream.m3u8", false)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "Range") {
		t.Error("Range not allowed in preflight")
	}
}

// sseLines streams "event:" and "data:" lines from an SSE response.
func sseLines(resp *http.Response) <-chan string {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "data:") {
				lines <- line
			}
		}
	}()
	return lines
}

func waitForLine(t *testing.T, lines <-chan string, substr string) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", substr)
			}
			if strings.Contains(line, substr) {
				return line
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %q", substr)
		}
	}
}

// openStream connects to an SSE endpoint. SSE endpoints without an initial
// message only answer once an event arrives, so publish keeps publishing
// until the stream is closed.
func openStream(t *testing.T, ts *testServer, path string, publish func()) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if publish != nil {
		go func() {
			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					publish()
				}
			}
		}()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("connect %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	return sseLines(resp)
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	lines := openStream(t, ts, "/api/events?"+authQuery(), nil)

	waitForLine(t, lines, "event: status")
	waitForLine(t, lines, `"state":"idle"`)

	ts.bus.Publish(events.ProcessCrashedEvent{
		RunID:     "run-7",
		PID:       99,
		ExitCode:  1,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	waitForLine(t, lines, "event: process-crashed")
	waitForLine(t, lines, `"run_id":"run-7"`)
}

func TestEventsStreamRequiresAuth(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)

	resp := ts.do(t, http.MethodGet, "/api/events", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMetricsStream(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	lines := openStream(t, ts, "/api/metrics", func() {
		ts.bus.Publish(events.ProgressEvent{Frame: 1200, FPS: "25.00", Speed: "1.00"})
	})

	waitForLine(t, lines, "event: progress")
	waitForLine(t, lines, `"frame":1200`)
}

func TestLogsStream(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	lines := openStream(t, ts, "/api/logs/stream", func() {
		ts.bus.Publish(events.LogEntryEvent{Level: "warn", Module: "ffmpeg", Message: "Connection refused"})
	})

	waitForLine(t, lines, "Connection refused")
}
