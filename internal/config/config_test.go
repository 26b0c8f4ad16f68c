package config_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/matthewmueller/spaserve"
	"github.com/matthewmueller/spaserve/internal/config"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaults(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	cfg, err := config.Load([]string{"-dir", dir}, env(nil), io.Discard)
	is.NoErr(err)
	is.Equal(cfg.Port, 8000)
	is.Equal(cfg.Addr(), ":8000")
	is.Equal(cfg.Dir, dir)
	is.Equal(cfg.Index, "index.html")
	is.Equal(cfg.Watch, "watcher")
	is.Equal(cfg.PollInterval, time.Second)
	is.Equal(cfg.LogLevel, "info")
	is.Equal(len(cfg.Ignore), 0)
}

func TestDefaultDir(t *testing.T) {
	is := is.New(t)
	// Test binaries are built into the go-build cache
	wd, err := os.Getwd()
	is.NoErr(err)
	is.Equal(config.DefaultDir(), wd)
}

func TestPrecedence(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	file := "port: 3000\nindex: app.html\nwatch: fsnotify\npoll_interval: 250ms\nlog_level: debug\nignore:\n  - node_modules\n  - dist/*.map\n"
	is.NoErr(os.WriteFile(filepath.Join(dir, config.FileName), []byte(file), 0644))

	// File in the served directory
	cfg, err := config.Load([]string{"-dir", dir}, env(nil), io.Discard)
	is.NoErr(err)
	is.Equal(cfg.Port, 3000)
	is.Equal(cfg.Index, "app.html")
	is.Equal(cfg.Watch, "fsnotify")
	is.Equal(cfg.PollInterval, 250*time.Millisecond)
	is.Equal(cfg.LogLevel, "debug")
	is.Equal(cfg.Ignore, []string{"node_modules", "dist/*.map"})

	// Environment overrides the file
	cfg, err = config.Load([]string{"-dir", dir}, env(map[string]string{
		"SPASERVE_PORT":  "4000",
		"SPASERVE_WATCH": "off",
	}), io.Discard)
	is.NoErr(err)
	is.Equal(cfg.Port, 4000)
	is.Equal(cfg.Watch, "off")

	// Flags override everything
	cfg, err = config.Load([]string{"-dir", dir, "-port", "5000", "-watch", "watcher", "-poll", "2s"}, env(map[string]string{
		"SPASERVE_PORT": "4000",
	}), io.Discard)
	is.NoErr(err)
	is.Equal(cfg.Port, 5000)
	is.Equal(cfg.Watch, "watcher")
	is.Equal(cfg.PollInterval, 2*time.Second)
}

func TestDirFromEnv(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	is.NoErr(os.WriteFile(filepath.Join(dir, config.FileName), []byte("port: 3000\n"), 0644))
	cfg, err := config.Load(nil, env(map[string]string{"SPASERVE_DIR": dir}), io.Discard)
	is.NoErr(err)
	is.Equal(cfg.Dir, dir)
	is.Equal(cfg.Port, 3000)
}

func TestExplicitFile(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.yaml")
	is.NoErr(os.WriteFile(path, []byte("port: 9000\n"), 0644))
	cfg, err := config.Load([]string{"-dir", dir, "-config", path}, env(nil), io.Discard)
	is.NoErr(err)
	is.Equal(cfg.Port, 9000)

	// An explicit file has to exist
	_, err = config.Load([]string{"-dir", dir, "-config", filepath.Join(dir, "missing.yaml")}, env(nil), io.Discard)
	is.True(err != nil)
}

func TestInvalid(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	tests := []struct {
		args []string
		env  map[string]string
	}{
		{args: []string{"-port", "nope"}},
		{args: []string{"-port", "70000"}},
		{args: []string{"-watch", "poll"}},
		{args: []string{"-log-level", "loud"}},
		{args: []string{"-poll", "0s"}},
		{args: []string{"-index", " "}},
		{args: []string{"extra"}},
		{env: map[string]string{"SPASERVE_PORT": "eighty"}},
	}
	for _, test := range tests {
		_, err := config.Load(append([]string{"-dir", dir}, test.args...), env(test.env), io.Discard)
		is.True(err != nil) // test.args
	}

	is.NoErr(os.WriteFile(filepath.Join(dir, config.FileName), []byte("port: [\n"), 0644))
	_, err := config.Load([]string{"-dir", dir}, env(nil), io.Discard)
	is.True(err != nil)
}

func TestOptions(t *testing.T) {
	is := is.New(t)
	cfg := config.Default()
	cfg.Ignore = []string{"node_modules"}
	cfg.LogLevel = "warn"
	log, err := cfg.Logger(io.Discard)
	is.NoErr(err)
	is.True(!log.Enabled(context.Background(), slog.LevelDebug))
	options, err := cfg.Options(log)
	is.NoErr(err)
	is.Equal(len(options), 5)
	server := spaserve.Dir(t.TempDir(), options...)
	is.True(server.Reloader().Ignore.Match("node_modules/react/index.js"))
	is.True(server.Reloader().Ignore.Match(".git/HEAD"))
	is.Equal(server.Reloader().Backend, spaserve.BackendWatcher)
}
