package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matthewmueller/spaserve"
	"gopkg.in/yaml.v3"
)

// DefaultPort the server listens on
const DefaultPort = 8000

// FileName of the optional config file in the served directory
const FileName = "spaserve.yaml"

// Config for the spaserve command
type Config struct {
	Port         int           `yaml:"port"`
	Dir          string        `yaml:"dir"`
	Index        string        `yaml:"index"`
	Watch        string        `yaml:"watch"`
	Ignore       []string      `yaml:"ignore"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogLevel     string        `yaml:"log_level"`
}

// Default configuration
func Default() Config {
	return Config{
		Port:         DefaultPort,
		Dir:          DefaultDir(),
		Index:        spaserve.DefaultIndex,
		Watch:        string(spaserve.BackendWatcher),
		PollInterval: time.Second,
		LogLevel:     "info",
	}
}

// DefaultDir is the directory the executable lives in, so the server serves
// the files next to it no matter where it was launched from. Binaries built
// by `go run` live in a throwaway cache, so those serve the working directory.
func DefaultDir() string {
	wd, _ := os.Getwd()
	exe, err := os.Executable()
	if err != nil {
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if isBuildCache(dir) {
		return wd
	}
	return dir
}

func isBuildCache(dir string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(dir), "/") {
		if strings.HasPrefix(segment, "go-build") {
			return true
		}
	}
	return false
}

type flags struct {
	port         int
	dir          string
	index        string
	watch        string
	config       string
	pollInterval time.Duration
	logLevel     string
}

// Load the configuration. Later sources override earlier ones: defaults, the
// config file, SPASERVE_* environment variables and finally flags.
func Load(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	cfg := Default()
	var f flags
	set := flag.NewFlagSet("spaserve", flag.ContinueOnError)
	set.SetOutput(stderr)
	set.IntVar(&f.port, "port", cfg.Port, "port to listen on")
	set.StringVar(&f.dir, "dir", cfg.Dir, "directory to serve")
	set.StringVar(&f.index, "index", cfg.Index, "document served for client-side routes")
	set.StringVar(&f.watch, "watch", cfg.Watch, "watch backend: watcher, fsnotify or off")
	set.StringVar(&f.config, "config", "", "config file (default "+FileName+" in the served directory)")
	set.DurationVar(&f.pollInterval, "poll", cfg.PollInterval, "how often pages check for changes")
	set.StringVar(&f.logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	if err := set.Parse(args); err != nil {
		return cfg, err
	}
	if set.NArg() > 0 {
		return cfg, fmt.Errorf("config: unexpected arguments %q", set.Args())
	}
	visited := map[string]bool{}
	set.Visit(func(fl *flag.Flag) { visited[fl.Name] = true })

	// The config file is looked up in the directory being served
	dir := cfg.Dir
	if env := strings.TrimSpace(getenv("SPASERVE_DIR")); env != "" {
		dir = env
	}
	if visited["dir"] {
		dir = f.dir
	}
	path := getenv("SPASERVE_CONFIG")
	if visited["config"] {
		path = f.config
	}
	if err := loadFile(&cfg, dir, path); err != nil {
		return cfg, err
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	if visited["port"] {
		cfg.Port = f.port
	}
	if visited["dir"] {
		cfg.Dir = f.dir
	}
	if visited["index"] {
		cfg.Index = f.index
	}
	if visited["watch"] {
		cfg.Watch = f.watch
	}
	if visited["poll"] {
		cfg.PollInterval = f.pollInterval
	}
	if visited["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	return cfg, cfg.Validate()
}

// loadFile reads an explicit config file, or spaserve.yaml in dir when it
// exists.
func loadFile(cfg *Config, dir, path string) error {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: unable to parse %s: %w", path, err)
	}
	merge(cfg, file)
	return nil
}

// merge copies the fields set in the file. Ignore patterns extend the defaults.
func merge(cfg *Config, file Config) {
	if file.Port != 0 {
		cfg.Port = file.Port
	}
	if file.Dir != "" {
		cfg.Dir = file.Dir
	}
	if file.Index != "" {
		cfg.Index = file.Index
	}
	if file.Watch != "" {
		cfg.Watch = file.Watch
	}
	if file.PollInterval != 0 {
		cfg.PollInterval = file.PollInterval
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	cfg.Ignore = append(cfg.Ignore, file.Ignore...)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if raw := strings.TrimSpace(getenv("SPASERVE_PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: invalid SPASERVE_PORT %q: %w", raw, err)
		}
		cfg.Port = port
	}
	if raw := strings.TrimSpace(getenv("SPASERVE_DIR")); raw != "" {
		cfg.Dir = raw
	}
	if raw := strings.TrimSpace(getenv("SPASERVE_INDEX")); raw != "" {
		cfg.Index = raw
	}
	if raw := strings.TrimSpace(getenv("SPASERVE_WATCH")); raw != "" {
		cfg.Watch = raw
	}
	if raw := strings.TrimSpace(getenv("SPASERVE_LOG_LEVEL")); raw != "" {
		cfg.LogLevel = raw
	}
	return nil
}

// Validate the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.Index) == "" {
		return errors.New("config: index is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive, got %s", c.PollInterval)
	}
	if _, err := spaserve.ParseBackend(c.Watch); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Addr to listen on
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Logger writes text logs at the configured level
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return level, fmt.Errorf("config: invalid log level %q", name)
	}
	return level, nil
}

// Options for spaserve.Dir
func (c Config) Options(log *slog.Logger) ([]spaserve.Option, error) {
	backend, err := spaserve.ParseBackend(c.Watch)
	if err != nil {
		return nil, err
	}
	ignore := append(spaserve.Ignore{}, spaserve.DefaultIgnore...)
	ignore = append(ignore, c.Ignore...)
	return []spaserve.Option{
		spaserve.WithIndex(c.Index),
		spaserve.WithLogger(log),
		spaserve.WithBackend(backend),
		spaserve.WithIgnore(ignore),
		spaserve.WithPollInterval(c.PollInterval),
	}, nil
}
