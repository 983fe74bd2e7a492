package hls

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLayout(t *testing.T) Layout {
	t.Helper()
	return Layout{Dir: t.TempDir(), Manifest: "stream.m3u8", SegmentExt: ".ts"}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLayoutClassification(t *testing.T) {
	l := Layout{Dir: "/hls-web", Manifest: "stream.m3u8", SegmentExt: ".ts"}

	tests := []struct {
		name     string
		manifest bool
		segment  bool
	}{
		{"stream.m3u8", true, false},
		{"stream0.ts", false, true},
		{"stream123.ts", false, true},
		{".ts", false, false},
		{"other.m3u8", false, false},
		{"index.html", false, false},
		{"hls.js@latest", false, false},
		{"../stream.m3u8", false, false},
		{"sub/stream0.ts", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.IsManifest(tt.name); got != tt.manifest {
				t.Errorf("IsManifest(%q) = %v, want %v", tt.name, got, tt.manifest)
			}
			if got := l.IsSegment(tt.name); got != tt.segment {
				t.Errorf("IsSegment(%q) = %v, want %v", tt.name, got, tt.segment)
			}
			if got := l.IsArtifact(tt.name); got != (tt.manifest || tt.segment) {
				t.Errorf("IsArtifact(%q) = %v", tt.name, got)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	l := Layout{Manifest: "stream.m3u8", SegmentExt: ".ts"}
	if got := l.ContentType("stream.m3u8"); got != "application/vnd.apple.mpegurl" {
		t.Errorf("manifest content type = %s", got)
	}
	if got := l.ContentType("stream1.ts"); got != "video/mp2t" {
		t.Errorf("segment content type = %s", got)
	}
}

func TestPurgeRemovesOnlyArtifacts(t *testing.T) {
	l := testLayout(t)
	writeFile(t, l.ManifestPath(), "#EXTM3U\n")
	writeFile(t, l.Path("stream0.ts"), "0123456789")
	writeFile(t, l.Path("stream1.ts"), "0123456789")
	writeFile(t, l.Path("index.html"), "<html></html>")
	writeFile(t, l.Path("hls.js@latest"), "js")
	if err := os.Mkdir(l.Path("keep.ts"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := l.Purge(testLogger())
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if res.Files != 3 {
		t.Errorf("expected 3 files removed, got %d", res.Files)
	}
	if res.Bytes != 28 {
		t.Errorf("expected 28 bytes removed, got %d", res.Bytes)
	}

	for _, name := range []string{"stream.m3u8", "stream0.ts", "stream1.ts"} {
		if _, err := os.Stat(l.Path(name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected %s to be removed", name)
		}
	}
	for _, name := range []string{"index.html", "hls.js@latest", "keep.ts"} {
		if _, err := os.Stat(l.Path(name)); err != nil {
			t.Errorf("expected %s to be kept: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []Layout{
		{Manifest: "stream.m3u8", SegmentExt: ".ts"},
		{Manifest: "live.m3u8", SegmentExt: ".m4s"},
	}
	for _, l := range valid {
		if err := l.Validate(); err != nil {
			t.Errorf("Validate(%q, %q) = %v", l.Manifest, l.SegmentExt, err)
		}
	}

	invalid := []Layout{
		{Manifest: "stream.m3u8", SegmentExt: ""},
		{Manifest: "stream.m3u8", SegmentExt: "."},
		{Manifest: "stream.m3u8", SegmentExt: "ts"},
		{Manifest: "stream.m3u8", SegmentExt: ".tar.gz"},
		{Manifest: "stream.m3u8", SegmentExt: ".lock"},
		{Manifest: "stream.m3u8", SegmentExt: ".html"},
		{Manifest: "", SegmentExt: ".ts"},
		{Manifest: ".m3u8", SegmentExt: ".ts"},
		{Manifest: "a/stream.m3u8", SegmentExt: ".ts"},
		{Manifest: "hls.js@latest", SegmentExt: ".ts"},
	}
	for _, l := range invalid {
		if err := l.Validate(); err == nil {
			t.Errorf("Validate(%q, %q) accepted", l.Manifest, l.SegmentExt)
		}
	}
}

func TestEmptySegmentExtMatchesNothing(t *testing.T) {
	l := testLayout(t)
	l.SegmentExt = ""
	for _, name := range []string{IndexFile, ClientFile, LockFileName, "stream.m3u8"} {
		writeFile(t, l.Path(name), "x")
	}

	for _, name := range []string{IndexFile, ClientFile, LockFileName, "stream0.ts"} {
		if l.IsSegment(name) {
			t.Errorf("IsSegment(%q) = true with no segment extension", name)
		}
	}

	res, err := l.Purge(testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 1 {
		t.Errorf("purged %d files, want only the playlist", res.Files)
	}
	for _, name := range []string{IndexFile, ClientFile, LockFileName} {
		if _, err := os.Stat(l.Path(name)); err != nil {
			t.Errorf("%s removed: %v", name, err)
		}
	}
}

func TestPurgeMissingDir(t *testing.T) {
	l := Layout{Dir: filepath.Join(t.TempDir(), "missing"), Manifest: "stream.m3u8", SegmentExt: ".ts"}
	res, err := l.Purge(testLogger())
	if err != nil {
		t.Errorf("expected no error for missing dir, got %v", err)
	}
	if res.Files != 0 {
		t.Errorf("expected nothing removed, got %d", res.Files)
	}
}

func TestLockExclusive(t *testing.T) {
	l := testLayout(t)

	first, err := l.Lock()
	if err != nil {
		t.Fatalf("first Lock failed: %v", err)
	}

	if _, err := l.Lock(); !errors.Is(err, ErrDirLocked) {
		t.Errorf("expected ErrDirLocked, got %v", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	again, err := l.Lock()
	if err != nil {
		t.Fatalf("Lock after unlock failed: %v", err)
	}
	_ = again.Unlock()
}
