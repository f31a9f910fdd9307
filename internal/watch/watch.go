package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce collapses the bursts of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls a function whenever a file is written or replaced.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func(ctx context.Context) error
}

func New(path string, onChange func(ctx context.Context) error) *Watcher {
	return &Watcher{Path: path, Debounce: DefaultDebounce, OnChange: onChange}
}

// Run blocks until ctx is done. The directory of the file is watched so
// that editors replacing the file by rename are noticed. Errors returned by
// OnChange are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			logrus.Warnf("close watcher: %v", err)
		}
	}()

	target, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.Path, err)
	}
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logrus.WithField("path", target).Info("Watching for changes")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"path": ev.Name,
				"op":   ev.Op.String(),
			}).Debug("file changed")
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logrus.Warnf("watch error: %v", err)
		case <-fire:
			fire = nil
			if err := w.OnChange(ctx); err != nil {
				logrus.Errorf("re-export failed: %v", err)
			}
		}
	}
}
