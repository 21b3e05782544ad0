package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned by ResolveWithin for paths that escape the root.
var ErrOutsideRoot = errors.New("path escapes root")

// contentTypes maps knowledge-management file extensions to Content-Type.
var contentTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".json": "application/json",
	".puml": "text/plain; charset=utf-8",
}

// knowledgeFile serves GET /knowledge-management/* from the project root.
func (h *Handler) knowledgeFile(w http.ResponseWriter, r *http.Request) {
	path, err := ResolveWithin(h.opts.ProjectRoot, r.URL.Path)
	switch {
	case errors.Is(err, ErrOutsideRoot):
		slog.Warn("api: path traversal rejected", "path", r.URL.Path, "request_id", RequestID(r.Context()))
		http.Error(w, "Forbidden: path traversal detected", http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, "File not found: "+r.URL.Path, http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "File not found: "+r.URL.Path, http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.Error(w, "File not found: "+r.URL.Path, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType(path))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func contentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "text/plain"
}

// ResolveWithin joins the URL path urlPath onto root and returns the
// canonical target. Both root and target are made absolute, cleaned and
// stripped of symlinks before they are compared. A target outside root
// yields ErrOutsideRoot; a missing target yields an fs.ErrNotExist error.
func ResolveWithin(root, urlPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", err
	}

	rel := filepath.FromSlash(strings.TrimLeft(urlPath, "/"))
	target := filepath.Join(realRoot, rel)
	if !within(realRoot, target) {
		return "", ErrOutsideRoot
	}

	realTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return "", &fs.PathError{Op: "resolve", Path: target, Err: fs.ErrNotExist}
	}
	if !within(realRoot, realTarget) {
		return "", ErrOutsideRoot
	}
	return realTarget, nil
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
