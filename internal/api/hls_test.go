package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/hlsnode/internal/supervisor"
)

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestArtifactRejectsUnknownFile(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	for _, name := range []string{"notes.txt", "stream.m3u", ".ts", "index.htm"} {
		resp := ts.do(t, http.MethodGet, "/"+name, false)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET /%s = %d, want 404", name, resp.StatusCode)
		}
	}
	touches, ensures, _ := ts.ctrl.counts()
	if touches != 0 || ensures != 0 {
		t.Errorf("unknown files touched=%d ensured=%d, want 0", touches, ensures)
	}
}

func TestArtifactServesExistingManifest(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)
	ts.writeFile(t, "stream.m3u8", "#EXTM3U\n")

	resp := ts.do(t, http.MethodGet, "/stream.m3u8", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	if body := readBody(t, resp); body != "#EXTM3U\n" {
		t.Errorf("body = %q", body)
	}

	touches, ensures, _ := ts.ctrl.counts()
	if touches != 1 || ensures != 1 {
		t.Errorf("touched=%d ensured=%d, want 1 and 1", touches, ensures)
	}
}

func TestArtifactWaitsForSegment(t *testing.T) {
	ctrl := &fakeController{}
	ts := newTestServer(t, ctrl, false)
	ctrl.onEnsure = func() {
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = os.WriteFile(filepath.Join(ts.dir, "stream0.ts"), []byte("segment"), 0o644)
		}()
	}

	resp := ts.do(t, http.MethodGet, "/stream0.ts", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp2t" {
		t.Errorf("Content-Type = %q, want video/mp2t", ct)
	}
	if body := readBody(t, resp); body != "segment" {
		t.Errorf("body = %q", body)
	}
}

func TestArtifactTimeout(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	resp := ts.do(t, http.MethodGet, "/stream.m3u8", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestArtifactProcessDied(t *testing.T) {
	ts := newTestServer(t, &fakeController{dieOnRun: true}, false)

	resp := ts.do(t, http.MethodGet, "/stream.m3u8", false)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestArtifactNoInput(t *testing.T) {
	ts := newTestServer(t, &fakeController{startErr: supervisor.ErrNoInputConfigured}, false)

	resp := ts.do(t, http.MethodGet, "/stream.m3u8", false)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "not configured") {
		t.Errorf("body = %q", body)
	}
}

func TestArtifactImmediateExit(t *testing.T) {
	ctrl := &fakeController{startErr: &supervisor.ImmediateExitError{Code: 1, Output: []string{"Connection refused"}}}
	ts := newTestServer(t, ctrl, false)

	resp := ts.do(t, http.MethodGet, "/stream3.ts", false)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestIndexFallsBackToPlayer(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	resp := ts.do(t, http.MethodGet, "/", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "/hls.js@latest") || !strings.Contains(body, "/stream.m3u8") {
		t.Errorf("player page missing client or manifest:\n%s", body)
	}

	touches, ensures, _ := ts.ctrl.counts()
	if touches != 1 || ensures != 1 {
		t.Errorf("touched=%d ensured=%d, want 1 and 1", touches, ensures)
	}
}

func TestIndexServesOutputDirPage(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)
	ts.writeFile(t, "index.html", "<html>custom</html>")

	resp := ts.do(t, http.MethodGet, "/", false)
	if body := readBody(t, resp); body != "<html>custom</html>" {
		t.Errorf("body = %q", body)
	}
}

func TestIndexIgnoresStartError(t *testing.T) {
	ts := newTestServer(t, &fakeController{startErr: supervisor.ErrNoInputConfigured}, false)

	resp := ts.do(t, http.MethodGet, "/", false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestClientLibraryIsNotActivity(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, false)

	resp := ts.do(t, http.MethodGet, "/hls.js@latest", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing client status = %d, want 404", resp.StatusCode)
	}

	ts.writeFile(t, "hls.js@latest", "var Hls;")
	resp = ts.do(t, http.MethodGet, "/hls.js@latest", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Content-Type = %q", ct)
	}

	touches, ensures, _ := ts.ctrl.counts()
	if touches != 0 || ensures != 0 {
		t.Errorf("client library touched=%d ensured=%d, want 0", touches, ensures)
	}
}

func TestHLSRoutesSkipAuth(t *testing.T) {
	ts := newTestServer(t, &fakeController{}, true)
	ts.writeFile(t, "stream.m3u8", "#EXTM3U\n")

	resp := ts.do(t, http.MethodGet, "/stream.m3u8", false)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 without credentials", resp.StatusCode)
	}
}
