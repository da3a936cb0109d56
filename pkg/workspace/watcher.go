package workspace

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/menta2k/yolo-labeler/internal/logger"
	"github.com/menta2k/yolo-labeler/pkg/classes"
)

// ClassWatcher signals edits of classes.txt made outside the session
type ClassWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	changes chan struct{}
}

// NewClassWatcher watches the class file of dir. The folder is watched
// rather than the file so replacements by editors are seen.
func NewClassWatcher(dir string, debounce time.Duration, log *logger.Logger) (*ClassWatcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	cw := &ClassWatcher{
		watcher:  watcher,
		path:     classes.PathIn(abs),
		debounce: debounce,
		log:      log,
		changes:  make(chan struct{}, 1),
	}
	go cw.run()
	return cw, nil
}

// Changes delivers one value per settled burst of edits
func (cw *ClassWatcher) Changes() <-chan struct{} {
	return cw.changes
}

func (cw *ClassWatcher) run() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cw.schedule()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Warning("class file watcher error: %v", err)
		}
	}
}

func (cw *ClassWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return
	}
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		select {
		case cw.changes <- struct{}{}:
		default:
		}
	})
}

// Close stops watching
func (cw *ClassWatcher) Close() error {
	cw.mu.Lock()
	cw.closed = true
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
	return cw.watcher.Close()
}

// WatchClasses starts watching classes.txt. Poll ClassChanges and call
// ReloadClasses on each signal.
func (w *Workspace) WatchClasses(debounce time.Duration) error {
	if w.watcher != nil {
		return nil
	}
	cw, err := NewClassWatcher(w.dir, debounce, w.log)
	if err != nil {
		return err
	}
	w.watcher = cw
	return nil
}

// ClassChanges returns the class file signal channel, nil when not watching
func (w *Workspace) ClassChanges() <-chan struct{} {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Changes()
}
