package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPlayerHandler(t *testing.T) {
	h := PlayerHandler("live.m3u8")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `src="/hls.js@latest"`) {
		t.Error("page does not load hls.js")
	}
	// html/template renders the manifest as a JS string literal.
	if !strings.Contains(body, `"/live.m3u8"`) {
		t.Errorf("page does not reference manifest, body:\n%s", body)
	}
}

func TestPlayerHandlerHead(t *testing.T) {
	rec := httptest.NewRecorder()
	PlayerHandler("/stream.m3u8").ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d body bytes", rec.Body.Len())
	}
}
