package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/hls"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

// fakeController stands in for the supervisor.
type fakeController struct {
	mu        sync.Mutex
	touches   int
	ensures   int
	stops     int
	running   bool
	dieOnRun  bool // report dead right after EnsureRunning
	startErr  error
	onEnsure  func()
	lastStart supervisor.StartResult
}

func (f *fakeController) Touch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
}

func (f *fakeController) EnsureRunning(_ context.Context) (supervisor.StartResult, error) {
	f.mu.Lock()
	f.ensures++
	if f.startErr != nil {
		err := f.startErr
		f.mu.Unlock()
		return supervisor.AlreadyRunning, err
	}
	result := supervisor.AlreadyRunning
	if !f.running {
		result = supervisor.Started
	}
	f.running = !f.dieOnRun
	f.lastStart = result
	hook := f.onEnsure
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return result, nil
}

func (f *fakeController) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeController) Status() supervisor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := supervisor.Status{
		State:           process.StateIdle,
		Running:         f.running,
		LastActivity:    time.Now(),
		InactivityLimit: time.Minute,
		InputConfigured: f.startErr == nil,
	}
	if f.running {
		st.State = process.StateRunning
		st.PID = 4242
		st.RunID = "run-1"
		st.StartedAt = time.Now().Add(-time.Minute)
		st.Uptime = time.Minute
	}
	return st
}

func (f *fakeController) Stats() (process.Stats, error) {
	if !f.IsRunning() {
		return process.Stats{}, supervisor.ErrNotRunning
	}
	return process.Stats{CPUPercent: 12.5, MemoryRSS: 64 << 20, NumThreads: 8}, nil
}

func (f *fakeController) counts() (touches, ensures, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches, f.ensures, f.stops
}

type testServer struct {
	*httptest.Server
	ctrl *fakeController
	bus  *events.Bus
	dir  string
}

func newTestServer(t *testing.T, ctrl *fakeController, auth bool) *testServer {
	t.Helper()
	dir := t.TempDir()
	bus := events.New()

	opts := &Options{
		Supervisor: ctrl,
		EventBus:   bus,
		Layout:     hls.Layout{Dir: dir, Manifest: "stream.m3u8", SegmentExt: ".ts"},
		Wait:       hls.WaitOptions{Timeout: 300 * time.Millisecond, Interval: 10 * time.Millisecond},
	}
	if auth {
		opts.AuthUsername = "admin"
		opts.AuthPassword = "secret"
	}

	ts := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, ctrl: ctrl, bus: bus, dir: dir}
}

func (ts *testServer) writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(ts.dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (ts *testServer) do(t *testing.T, method, path string, withAuth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if withAuth {
		req.SetBasicAuth("admin", "secret")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func authQuery() string {
	return "auth=" + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
}
