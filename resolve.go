package spaserve

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// Kind of target a request path resolves to
type Kind uint8

const (
	KindNotFound Kind = iota
	KindFile
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFallback:
		return "fallback"
	default:
		return "not found"
	}
}

// Target is the result of resolving a request path against the served root
type Target struct {
	Kind Kind
	// Name within the served filesystem. Empty for KindNotFound.
	Name string
}

// HTML reports whether the target gets the live reload script injected.
func (t Target) HTML() bool {
	if t.Kind == KindFallback {
		return true
	}
	if t.Kind != KindFile {
		return false
	}
	switch strings.ToLower(path.Ext(t.Name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// Resolve maps a URL path to a file in fsys. Paths whose last segment has an
// extension are plain file requests and never fall back. Everything else
// falls back to the index document when there's no such file, so client-side
// routes like /app/settings load the application shell.
func Resolve(fsys fs.FS, urlPath, index string) Target {
	name := cleanPath(urlPath)
	if name == "." {
		return fallback(fsys, index)
	}
	if strings.Contains(path.Base(name), ".") {
		if isFile(fsys, name) {
			return Target{KindFile, name}
		}
		return Target{KindNotFound, ""}
	}
	if isFile(fsys, name) {
		return Target{KindFile, name}
	}
	return fallback(fsys, index)
}

func fallback(fsys fs.FS, index string) Target {
	name := cleanPath(index)
	if name == "." || !isFile(fsys, name) {
		return Target{KindNotFound, ""}
	}
	return Target{KindFallback, name}
}

// cleanPath turns a URL path into a valid fs.FS name. ".." can't climb above
// the root because the path is cleaned while still rooted.
func cleanPath(urlPath string) string {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return "."
	}
	return name
}

func isFile(fsys fs.FS, name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// serveFile writes the named file with http.ServeContent. Unlike
// http.ServeFileFS it doesn't redirect /index.html to the directory.
func serveFile(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string) {
	file, err := fsys.Open(name)
	if err != nil {
		serveError(w, r, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		serveError(w, r, err)
		return
	}
	if !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	content, ok := file.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(file)
		if err != nil {
			serveError(w, r, err)
			return
		}
		content = bytes.NewReader(data)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}

func serveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.NotFound(w, r)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	default:
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	}
}
