package spaserve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/matthewmueller/socket"
	"golang.org/x/sync/errgroup"
)

// DefaultIndex is the document served for client-side routes
const DefaultIndex = "index.html"

const allowedMethods = "GET, HEAD, OPTIONS"

type settings struct {
	dir          string
	index        string
	log          *slog.Logger
	backend      Backend
	ignore       Ignore
	pollInterval time.Duration
}

// Option configures a Server
type Option func(*settings)

// WithDir sets the on-disk directory to watch. Dir sets this for you.
func WithDir(dir string) Option {
	return func(s *settings) { s.dir = dir }
}

// WithIndex sets the root document
func WithIndex(index string) Option {
	return func(s *settings) { s.index = index }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *settings) { s.log = log }
}

func WithBackend(backend Backend) Option {
	return func(s *settings) { s.backend = backend }
}

// WithIgnore replaces the default ignore set
func WithIgnore(ignore Ignore) Option {
	return func(s *settings) { s.ignore = ignore }
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) { s.pollInterval = interval }
}

// Server serves a single-page application with live reload
type Server struct {
	fsys     fs.FS
	dir      string
	index    string
	log      *slog.Logger
	reloader *Reloader
	handler  http.Handler
}

// Dir serves and watches a directory on disk
func Dir(dir string, options ...Option) *Server {
	return New(os.DirFS(dir), append([]Option{WithDir(dir)}, options...)...)
}

// New server for fsys. Without WithDir there's nothing to watch and pages are
// served without live reload events.
func New(fsys fs.FS, options ...Option) *Server {
	s := &settings{
		index:   DefaultIndex,
		log:     slog.Default(),
		backend: BackendWatcher,
	}
	for _, option := range options {
		option(s)
	}
	reloader := NewReloader(s.log)
	reloader.Backend = s.backend
	if s.ignore != nil {
		reloader.Ignore = s.ignore
	}
	if s.pollInterval > 0 {
		reloader.PollInterval = s.pollInterval
	}
	server := &Server{
		fsys:     fsys,
		dir:      s.dir,
		index:    s.index,
		log:      s.log,
		reloader: reloader,
	}
	server.handler = accessLog(s.log, http.HandlerFunc(server.serve))
	return server
}

// Reloader returns the server's reloader
func (s *Server) Reloader() *Reloader {
	return s.reloader
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	setHeaders(w.Header())
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		w.Header().Set("Allow", allowedMethods)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", allowedMethods)
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.reloader.handles(r) {
		s.reloader.ServeHTTP(w, r)
		return
	}
	s.servePage(w, r)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	target := Resolve(s.fsys, r.URL.Path, s.index)
	switch {
	case target.Kind == KindNotFound:
		http.NotFound(w, r)
	case target.HTML():
		// The injected body differs from the file on disk, so conditional and
		// partial requests can't be answered from the file's metadata
		r = r.Clone(r.Context())
		for _, header := range []string{"If-Modified-Since", "If-None-Match", "If-Match", "If-Unmodified-Since", "If-Range", "Range"} {
			r.Header.Del(header)
		}
		s.reloader.Middleware(fileHandler(s.fsys, target.Name)).ServeHTTP(w, r)
	default:
		serveFile(w, r, s.fsys, target.Name)
	}
}

func fileHandler(fsys fs.FS, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveFile(w, r, fsys, name)
	})
}

// setHeaders allows any origin and disables caching so edited files are
// always fetched again
func setHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// Run serves on addr and watches the directory until ctx is cancelled. A
// failure to listen is returned and stops the watcher.
func (s *Server) Run(ctx context.Context, addr string) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if s.dir == "" {
			s.log.Debug("spaserve: no directory to watch")
			return nil
		}
		return s.reloader.Watch(ctx, s.dir)
	})
	eg.Go(func() error {
		s.log.Info("spaserve: server running", "url", "http://"+displayAddr(addr), "dir", s.dir)
		return serve(ctx, addr, s)
	})
	return eg.Wait()
}

// serve on addr until ctx is cancelled. Shutdown waits for open requests, so
// each request's context ends with ctx to let event streams return.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	err := socket.ListenAndServe(ctx, addr, cancelWith(ctx, handler))
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("spaserve: unable to serve %s: %w", addr, err)
}

// cancelWith cancels each request's context once ctx is done
func cancelWith(ctx context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCtx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		next.ServeHTTP(w, r.WithContext(reqCtx))
	})
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
