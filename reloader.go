package spaserve

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/livebud/sse"
)

// Event is an server-sent event (SSE) that you can send to the browser
type Event = sse.Event

// NewReloader with the default endpoints and ignore patterns
func NewReloader(log *slog.Logger) *Reloader {
	return &Reloader{
		Path:         "/livereload",
		HealthPath:   "/health-check",
		PollInterval: time.Second,
		Ignore:       DefaultIgnore,
		Backend:      BackendWatcher,
		log:          log,
		sse:          sse.New(log),
		version:      new(Version),
	}
}

// Reloader tracks filesystem changes and tells browsers about them, either
// through the polling script injected into HTML pages or through the
// server-sent event stream at Path.
type Reloader struct {
	// Path of the server-sent events stream
	Path string
	// HealthPath is polled by the injected script
	HealthPath string
	// PollInterval of the injected script
	PollInterval time.Duration
	// Ignore set for the watcher
	Ignore Ignore
	// Backend used by Watch
	Backend Backend

	log     *slog.Logger
	sse     *sse.Handler
	version *Version
}

// Version returns the shared reload state.
func (r *Reloader) Version() *Version {
	return r.version
}

// Publish sends a message to browser with the given event. Event data should
// follow the format "op:path;op:path" format in Watch.
func (r *Reloader) Publish(ctx context.Context, event *Event) error {
	return r.sse.Publish(ctx, event)
}

func (r *Reloader) handles(req *http.Request) bool {
	switch req.URL.Path {
	case r.HealthPath, r.Path + ".js":
		return true
	case r.Path:
		return req.Header.Get("Accept") == "text/event-stream"
	}
	return false
}

// ServeHTTP serves the reloader's own endpoints: the health check, the
// server-sent events stream and the standalone script at Path + ".js" for
// pages that aren't served through Middleware.
func (r *Reloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch {
	case req.URL.Path == r.HealthPath:
		r.HealthCheck(w, req)
	case req.URL.Path == r.Path+".js":
		r.serveScript(w, req)
	case req.URL.Path == r.Path && req.Header.Get("Accept") == "text/event-stream":
		r.sse.ServeHTTP(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (r *Reloader) serveScript(w http.ResponseWriter, req *http.Request) {
	// Pages on another origin need an absolute URL to poll
	script := []byte(r.pollScript(r.version.Current(), "//"+req.Host+r.HealthPath))
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(script)))
	w.Write(script)
}

// ListenAndServe runs the reloader's endpoints on their own address, for
// pages served by something other than Middleware. Those pages include
// <script src="http://localhost:35729/livereload.js"></script>.
func (r *Reloader) ListenAndServe(ctx context.Context, addr string) error {
	return serve(ctx, addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		setHeaders(w.Header())
		r.ServeHTTP(w, req)
	}))
}
