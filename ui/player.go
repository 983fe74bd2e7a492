// Package ui serves the built-in HLS player page.
package ui

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
)

//go:embed player.html
var playerHTML string

var playerTemplate = template.Must(template.New("player").Parse(playerHTML))

// ClientPath is where the player loads hls.js from.
const ClientPath = "/hls.js@latest"

type playerPage struct {
	Title    string
	Client   string
	Manifest string
}

// PlayerHandler returns a handler serving a page that plays the given
// manifest with hls.js. The page is rendered once.
func PlayerHandler(manifest string) http.Handler {
	var buf bytes.Buffer
	if err := playerTemplate.Execute(&buf, playerPage{
		Title:    "hlsnode",
		Client:   ClientPath,
		Manifest: "/" + strings.TrimPrefix(manifest, "/"),
	}); err != nil {
		panic(err)
	}
	body := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Cache-Control", "no-cache")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	})
}
