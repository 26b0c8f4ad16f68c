package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewmueller/spaserve"
	"github.com/matthewmueller/spaserve/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	cfg, err := config.Load(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	log, err := cfg.Logger(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	options, err := cfg.Options(log)
	if err != nil {
		log.Error("spaserve: invalid config", "error", err)
		return 2
	}
	server := spaserve.Dir(cfg.Dir, options...)
	if err := server.Run(ctx, cfg.Addr()); err != nil {
		log.Error("spaserve: server stopped", "error", err)
		return 1
	}
	log.Info("spaserve: shut down")
	return 0
}
