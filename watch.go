package spaserve

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/livebud/watcher"
)

// Backend selects how Watch observes the filesystem
type Backend string

const (
	// BackendWatcher uses github.com/livebud/watcher
	BackendWatcher Backend = "watcher"
	// BackendFsnotify registers fsnotify watches directly and skips ignored
	// directories entirely
	BackendFsnotify Backend = "fsnotify"
	// BackendOff disables live reload
	BackendOff Backend = "off"
)

// ParseBackend validates a backend name. An empty name is the default.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case "", BackendWatcher:
		return BackendWatcher, nil
	case BackendFsnotify:
		return BackendFsnotify, nil
	case BackendOff, "none", "false":
		return BackendOff, nil
	}
	return "", fmt.Errorf("spaserve: unknown watch backend %q", name)
}

// change is a single filesystem event in "op:path" form
type change struct {
	Op   string
	Path string
}

func (c change) String() string {
	return c.Op + ":" + c.Path
}

// Watch a directory for changes and tell the browser to reload. Watching is
// optional: when the watcher can't start or stops with an error, the error is
// logged and Watch returns nil so the server keeps serving files.
func (r *Reloader) Watch(ctx context.Context, dir string) error {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	var err error
	switch r.Backend {
	case BackendOff:
		r.log.Info("spaserve: live reload disabled")
		return nil
	case BackendFsnotify:
		err = r.watchFsnotify(ctx, dir)
	default:
		err = r.watchWatcher(ctx, dir)
	}
	if err != nil && ctx.Err() == nil {
		r.log.Warn("spaserve: live reload unavailable", "dir", dir, "error", err)
	}
	return nil
}

func (r *Reloader) watchWatcher(ctx context.Context, dir string) error {
	return watcher.Watch(ctx, dir, func(events []watcher.Event) error {
		changes := make([]change, 0, len(events))
		for _, event := range events {
			op, path, ok := strings.Cut(event.String(), ":")
			if !ok {
				continue
			}
			changes = append(changes, change{op, path})
		}
		r.changed(ctx, dir, changes)
		return nil
	})
}

// changed filters out ignored paths and advances the version once per batch.
// It reports whether the batch triggered a reload.
func (r *Reloader) changed(ctx context.Context, dir string, changes []change) bool {
	var data bytes.Buffer
	ignored := r.Ignore.compile()
	for _, c := range changes {
		rel := relative(dir, c.Path)
		if ignored.match(rel, false) {
			r.log.Debug("spaserve: ignoring change", "op", c.Op, "path", rel)
			continue
		}
		r.log.Info("spaserve: file changed", "op", c.Op, "path", rel)
		if data.Len() > 0 {
			data.WriteString(";")
		}
		data.WriteString(change{c.Op, rel}.String())
	}
	if data.Len() == 0 {
		return false
	}
	version := r.version.Advance()
	r.log.Debug("spaserve: reload", "version", version)
	err := r.Publish(ctx, &Event{
		Type: "reload",
		Data: data.Bytes(),
	})
	if err != nil {
		r.log.Error("spaserve: failed to publish reload", "error", err, "events", data.String())
	}
	return true
}
