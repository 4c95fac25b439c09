package options

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "timereport/internal/log"
)

// Watcher keeps the options of a directory current.
type Watcher struct {
	dir      string
	onChange func(Options)

	mu   sync.RWMutex
	opts Options
	err  error
}

// NewWatcher loads dir once. onChange, if set, is called after every load
// including this first one.
func NewWatcher(dir string, onChange func(Options)) *Watcher {
	w := &Watcher{dir: dir, onChange: onChange}
	w.reload()
	return w
}

// Options returns the last loaded options and the error of that load.
func (w *Watcher) Options() (Options, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.opts, w.err
}

func (w *Watcher) reload() {
	opts, err := Load(w.dir)
	w.mu.Lock()
	w.opts, w.err = opts, err
	w.mu.Unlock()
	if w.onChange != nil {
		w.onChange(opts)
	}
	appLog.Debug("options: loaded", "dir", w.dir, "projects", len(opts.Projects), "services", len(opts.Services))
}

// Run reloads on changes to the option files until ctx is done. Events are
// coalesced over a short delay since editors often write in several steps.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	appLog.Info("options: watching", "dir", w.dir)

	const settle = 200 * time.Millisecond
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
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
			if !relevant(ev) {
				continue
			}
			appLog.Debug("options: file changed", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			appLog.Error("options: watch error", err, "dir", w.dir)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	switch filepath.Base(ev.Name) {
	case ProjectsFile, ServicesFile:
	default:
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
