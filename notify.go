package spaserve

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// Events arriving within this window are delivered as one batch
const debounceDelay = 100 * time.Millisecond

const notifyOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

func (r *Reloader) watchFsnotify(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	ignored := r.Ignore.compile()
	if err := addTree(fw, ignored, dir, dir); err != nil {
		return err
	}
	r.log.Debug("spaserve: watching", "dir", dir, "watches", len(fw.WatchList()))

	var mu sync.Mutex
	var pending []change
	flush := func() {
		mu.Lock()
		batch := pending
		pending = nil
		mu.Unlock()
		if len(batch) > 0 && ctx.Err() == nil {
			r.changed(ctx, dir, batch)
		}
	}
	debounced := debounce.New(debounceDelay)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				r.log.Warn("spaserve: watch queue overflowed", "dir", dir)
				continue
			}
			return err
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&notifyOps == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			isDir := err == nil && info.IsDir()
			if ignored.match(relative(dir, event.Name), isDir) {
				continue
			}
			// New directories need their own watches
			if isDir && event.Has(fsnotify.Create) {
				if err := addTree(fw, ignored, dir, event.Name); err != nil {
					r.log.Warn("spaserve: unable to watch directory", "path", event.Name, "error", err)
				}
			}
			mu.Lock()
			pending = append(pending, change{opName(event.Op), event.Name})
			mu.Unlock()
			debounced(flush)
		}
	}
}

// addTree registers every directory below start that isn't ignored.
func addTree(fw *fsnotify.Watcher, ignored *matcher, dir, start string) error {
	return filepath.WalkDir(start, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped, the root is required
			if path == start {
				return err
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && ignored.match(relative(dir, path), true) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return "delete"
	default:
		return "update"
	}
}
