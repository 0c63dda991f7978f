package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports files that appear in a directory
type Watcher struct {
	dir    string
	accept func(name string) bool
	onNew  func(name string)
	logger *zap.Logger
}

// NewWatcher creates a watcher over dir. onNew is called with the base name
// of every created or renamed-in file that accept approves. Hidden files
// are ignored.
func NewWatcher(dir string, accept func(string) bool, onNew func(string), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{dir: dir, accept: accept, onNew: onNew, logger: logger}
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching uploads", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || (w.accept != nil && !w.accept(name)) {
				continue
			}
			w.logger.Debug("new file", zap.String("name", name))
			w.onNew(name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}
