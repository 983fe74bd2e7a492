package hls

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Files served from the output directory that are not ffmpeg artifacts.
const (
	IndexFile  = "index.html"
	ClientFile = "hls.js@latest"
)

// Layout describes where ffmpeg writes its HLS output.
type Layout struct {
	Dir        string
	Manifest   string // playlist file name, e.g. stream.m3u8
	SegmentExt string // segment extension including the dot, e.g. .ts
}

// ManifestPath returns the absolute playlist path.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.Dir, l.Manifest)
}

// Path joins name onto the output directory. name must be a plain file name.
func (l Layout) Path(name string) string {
	return filepath.Join(l.Dir, name)
}

// IsManifest reports whether name is the playlist.
func (l Layout) IsManifest(name string) bool {
	return validName(name) && name == l.Manifest
}

// IsSegment reports whether name is a media segment. Nothing is a segment
// when the extension is not valid.
func (l Layout) IsSegment(name string) bool {
	if validSegmentExt(l.SegmentExt) != nil || name == LockFileName {
		return false
	}
	return validName(name) && strings.HasSuffix(name, l.SegmentExt) && len(name) > len(l.SegmentExt)
}

// IsArtifact reports whether name is a file ffmpeg produces (playlist or segment).
func (l Layout) IsArtifact(name string) bool {
	return l.IsManifest(name) || l.IsSegment(name)
}

// Validate checks the playlist name and segment extension. Purge deletes
// whatever they match, so they must not match the index page, the client
// library or the lock file.
func (l Layout) Validate() error {
	if !validName(l.Manifest) || strings.HasPrefix(l.Manifest, ".") {
		return fmt.Errorf("output.manifest: invalid file name %q", l.Manifest)
	}
	if err := validSegmentExt(l.SegmentExt); err != nil {
		return err
	}
	if strings.HasSuffix(l.Manifest, l.SegmentExt) {
		return fmt.Errorf("output.manifest: %q ends with the segment extension %q", l.Manifest, l.SegmentExt)
	}
	for _, reserved := range []string{IndexFile, ClientFile, LockFileName} {
		if reserved == l.Manifest || strings.HasSuffix(reserved, l.SegmentExt) {
			return fmt.Errorf("output layout %q/%q would match %s", l.Manifest, l.SegmentExt, reserved)
		}
	}
	return nil
}

// ContentType returns the HTTP content type for an artifact name.
func (l Layout) ContentType(name string) string {
	if l.IsManifest(name) {
		return "application/vnd.apple.mpegurl"
	}
	switch filepath.Ext(name) {
	case ".ts":
		return "video/mp2t"
	case ".m4s", ".mp4":
		return "video/mp4"
	}
	return "application/octet-stream"
}

// PurgeResult summarizes a Purge call.
type PurgeResult struct {
	Files int
	Bytes int64
}

// Purge removes the playlist and every segment from the output directory.
// Other files (index page, client library) are left alone. A missing
// directory is not an error. The first removal error is returned after all
// files have been attempted.
func (l Layout) Purge(logger *slog.Logger) (PurgeResult, error) {
	var res PurgeResult

	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("read output dir: %w", err)
	}

	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !l.IsArtifact(entry.Name()) {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		if err := os.Remove(l.Path(entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to remove stale file", "file", entry.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
			continue
		}
		res.Files++
		res.Bytes += size
	}

	if res.Files > 0 {
		logger.Info("Purged stale HLS files", "files", res.Files, "size", humanize.IBytes(uint64(res.Bytes)))
	}
	return res, firstErr
}

// EnsureDir creates the output directory if needed.
func (l Layout) EnsureDir() error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

func validSegmentExt(ext string) error {
	if len(ext) < 2 || ext[0] != '.' || !validName(ext) || strings.Contains(ext[1:], ".") {
		return fmt.Errorf("output.segment_ext: must be a dot followed by an extension, got %q", ext)
	}
	return nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
