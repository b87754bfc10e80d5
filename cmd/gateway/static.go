package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SPAHandler serves a pre-built single-page-application bundle. Request
// paths that resolve to a file under the root are served directly;
// anything else falls back to the entry document with a success status
// so client-side routing decides what to render.
type SPAHandler struct {
	root      string
	index     string
	assetDirs []*AssetDir
}

// NewSPAHandler creates a static handler for the configured bundle root
func NewSPAHandler(config *Config) *SPAHandler {
	return &SPAHandler{
		root:      config.StaticRoot,
		index:     config.IndexFile,
		assetDirs: config.AssetDirs,
	}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Normalizing the rooted path first resolves ".." segments, so
	// traversal attempts stay confined to the bundle root.
	cleaned := path.Clean("/" + r.URL.Path)
	r.URL.Path = cleaned

	fsPath := filepath.Join(h.root, filepath.FromSlash(cleaned))
	if info, err := os.Stat(fsPath); err == nil && !info.IsDir() {
		for _, dir := range h.assetDirs {
			if dir.CacheTTL > 0 && strings.HasPrefix(cleaned, dir.URLPath) {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", dir.CacheTTL))
				break
			}
		}
		setContentType(w, fsPath)
		http.ServeFile(w, r, fsPath)
		slog.Debug("Served static file", "path", cleaned, "fsPath", fsPath)
		return
	}

	// SPA fallback: an unmatched path is an in-app route, not a
	// missing resource. The shell must not be cached so deploys of a
	// new bundle take effect immediately.
	indexPath := filepath.Join(h.root, h.index)
	w.Header().Set("Cache-Control", "no-cache")
	setContentType(w, indexPath)
	http.ServeFile(w, r, indexPath)
	slog.Debug("Served entry document", "path", cleaned)
}

// setContentType sets the appropriate Content-Type header based on file extension
func setContentType(w http.ResponseWriter, fsPath string) {
	ext := filepath.Ext(fsPath)
	switch ext {
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".html", ".htm":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case ".txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case ".json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	case ".gif":
		w.Header().Set("Content-Type", "image/gif")
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	case ".ico":
		w.Header().Set("Content-Type", "image/x-icon")
	case ".woff":
		w.Header().Set("Content-Type", "font/woff")
	case ".woff2":
		w.Header().Set("Content-Type", "font/woff2")
	case ".ttf":
		w.Header().Set("Content-Type", "font/ttf")
	}
}
