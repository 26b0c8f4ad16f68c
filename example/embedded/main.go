package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/livebud/mux"
	"github.com/matthewmueller/socket"
	"github.com/matthewmueller/spaserve"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx := context.Background()
	fsys := http.FileServer(http.Dir("example/public"))
	lr := spaserve.NewReloader(slog.Default())
	router := mux.New()
	router.Get("/", fsys.ServeHTTP)
	router.Get("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintln(w, "<html><body><h1>About Page</h1></body></html>")
	})
	router.Get("/api/time", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"now": time.Now().Format(time.RFC3339)})
	})
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return lr.Watch(ctx, "example/public")
	})
	eg.Go(func() error {
		fmt.Println("Server started at http://localhost:3000")
		return socket.ListenAndServe(ctx, ":3000", lr.Middleware(router))
	})
	if err := eg.Wait(); err != nil {
		slog.Error("Error in server", "error", err)
		return
	}
}
