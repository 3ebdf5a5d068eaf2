package mediator

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// AutoLoadWatcher watches a directory for new .sna/.nex files and feeds
// each one through LoadSnapshot as it appears (spec §4.13), instead of
// the front-end polling the directory itself.
type AutoLoadWatcher struct {
	m       *Mediator
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchAutoLoadDir starts watching dir. Closing the returned watcher stops
// the goroutine; the Mediator's Disconnect does not close it.
func (m *Mediator) WatchAutoLoadDir(dir string) (*AutoLoadWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	al := &AutoLoadWatcher{m: m, watcher: w, done: make(chan struct{})}
	go al.run()
	return al, nil
}

func (al *AutoLoadWatcher) run() {
	defer close(al.done)
	for {
		select {
		case ev, ok := <-al.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !isSnapshotFile(ev.Name) {
				continue
			}
			if err := al.m.LoadSnapshot(ev.Name); err != nil {
				if al.m.logger != nil {
					al.m.logger.Warn("auto-load %s failed: %v", ev.Name, err)
				}
				continue
			}
			if al.m.logger != nil {
				al.m.logger.Info("auto-loaded %s", ev.Name)
			}
		case err, ok := <-al.watcher.Errors:
			if !ok {
				return
			}
			if al.m.logger != nil {
				al.m.logger.Error("auto-load watch error: %v", err)
			}
		}
	}
}

func isSnapshotFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".sna", ".nex":
		return true
	default:
		return false
	}
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (al *AutoLoadWatcher) Close() error {
	err := al.watcher.Close()
	<-al.done
	return err
}
