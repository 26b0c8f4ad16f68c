package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestRunFlagErrors(t *testing.T) {
	is := is.New(t)
	var stderr bytes.Buffer
	is.Equal(run(context.Background(), []string{"-port", "nope"}, env(nil), &stderr), 2)
	is.True(strings.Contains(stderr.String(), "-port"))

	stderr.Reset()
	is.Equal(run(context.Background(), []string{"-h"}, env(nil), &stderr), 0)
	is.True(strings.Contains(stderr.String(), "-dir"))
}

func TestRunConfigErrors(t *testing.T) {
	is := is.New(t)
	var stderr bytes.Buffer
	dir := t.TempDir()
	is.Equal(run(context.Background(), []string{"-dir", dir, "-watch", "poll"}, env(nil), &stderr), 2)
	is.True(strings.Contains(stderr.String(), "poll"))

	stderr.Reset()
	is.Equal(run(context.Background(), []string{"-dir", dir, "-config", filepath.Join(dir, "missing.yaml")}, env(nil), &stderr), 2)
	is.True(strings.Contains(stderr.String(), "missing.yaml"))

	stderr.Reset()
	is.Equal(run(context.Background(), []string{"-dir", dir}, env(map[string]string{"SPASERVE_LOG_LEVEL": "loud"}), &stderr), 2)
	is.True(strings.Contains(stderr.String(), "loud"))
}

func TestRunBindFailure(t *testing.T) {
	is := is.New(t)
	ln, err := net.Listen("tcp", ":0")
	is.NoErr(err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	var stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code := run(ctx, []string{"-dir", t.TempDir(), "-port", strconv.Itoa(port), "-watch", "off"}, env(nil), &stderr)
	is.Equal(code, 1)
	is.True(strings.Contains(stderr.String(), "server stopped"))
}

func TestRunShutdown(t *testing.T) {
	is := is.New(t)
	// Grab a free port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	port := ln.Addr().(*net.TCPAddr).Port
	is.NoErr(ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	var stderr bytes.Buffer
	go func() {
		done <- run(ctx, []string{"-dir", t.TempDir(), "-port", strconv.Itoa(port), "-watch", "fsnotify"}, env(nil), &stderr)
	}()
	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case code := <-done:
		is.Equal(code, 0)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
}
