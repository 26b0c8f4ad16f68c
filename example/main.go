package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/matthewmueller/spaserve"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	server := spaserve.Dir("example/public")
	if err := server.Run(ctx, ":3000"); err != nil {
		slog.Error("Error in server", "error", err)
		os.Exit(1)
	}
}
