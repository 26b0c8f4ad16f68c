package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/livebud/mux"
	"github.com/matthewmueller/socket"
	"github.com/matthewmueller/spaserve"
	"golang.org/x/sync/errgroup"
)

// The pages live on :3000 and load the reload script from a separate
// reloader on :35729, the way a page served by another server would.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log := slog.Default()
	dir := "example/external/public"

	lr := spaserve.NewReloader(log)
	lr.Backend = spaserve.BackendFsnotify

	pages := http.FileServer(http.Dir(dir))
	router := mux.New()
	router.Get("/", pages.ServeHTTP)
	router.Get("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintln(w, `<html><body><h1>About</h1><script src="http://localhost:35729/livereload.js"></script></body></html>`)
	})

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return lr.Watch(ctx, dir)
	})
	eg.Go(func() error {
		log.Info("reloader started", "url", "http://localhost:35729")
		return lr.ListenAndServe(ctx, ":35729")
	})
	eg.Go(func() error {
		log.Info("pages started", "url", "http://localhost:3000")
		return socket.ListenAndServe(ctx, ":3000", router)
	})
	if err := eg.Wait(); err != nil {
		log.Error("external example failed", "error", err)
		os.Exit(1)
	}
}
