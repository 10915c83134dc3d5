package dashboard

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DBWatcher reports writes to a SQLite database file and its WAL/SHM siblings.
type DBWatcher struct {
	log      *logrus.Logger
	watcher  *fsnotify.Watcher
	names    map[string]bool
	onChange func()
}

// NewDBWatcher watches the directory holding dbPath and calls onChange for
// every create, write, remove or rename of the database files.
func NewDBWatcher(dbPath string, onChange func(), log *logrus.Logger) (*DBWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	// Watch the parent directory: the file may not exist yet, and SQLite
	// replaces the WAL files.
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	base := filepath.Base(abs)
	return &DBWatcher{
		log:     log,
		watcher: watcher,
		names: map[string]bool{
			base:              true,
			base + "-wal":     true,
			base + "-shm":     true,
			base + "-journal": true,
		},
		onChange: onChange,
	}, nil
}

// Start processes filesystem events until ctx is cancelled.
func (w *DBWatcher) Start(ctx context.Context) {
	w.log.Debug("Starting database watcher")

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Error("Watcher error")
		}
	}
}

// Close stops the watcher without waiting for Start to return.
func (w *DBWatcher) Close() error {
	return w.watcher.Close()
}

func (w *DBWatcher) handleFsEvent(event fsnotify.Event) {
	if !w.names[filepath.Base(event.Name)] {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.log.WithFields(logrus.Fields{
		"path": event.Name,
		"op":   event.Op.String(),
	}).Debug("Database changed")
	w.onChange()
}
