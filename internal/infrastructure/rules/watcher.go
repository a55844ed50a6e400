package rules

import (
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/pkg/safego"
)

const debounceDelay = 500 * time.Millisecond

// Watcher hot-reloads an Engine from a rules.yaml file. It watches the
// containing directory rather than the file itself, so editors that replace
// the file (write-to-temp-then-rename) are still observed.
type Watcher struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[Engine]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

var _ service.RulesWatcher = (*Watcher)(nil)

// NewWatcher loads path once synchronously, then starts watching it for
// changes. The initial load error is fatal; subsequent load failures just
// keep the previous engine live and log a warning.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := dirOf(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, watcher: fsw, done: make(chan struct{})}
	w.current.Store(New(cfg))

	safego.Go(logger, "rules-watcher", w.loop)
	return w, nil
}

// Current returns the live engine. Safe for concurrent use; never returns a
// partially-built engine.
func (w *Watcher) Current() service.RuleEngine {
	return w.current.Load()
}

// Close stops the watcher goroutine and releases the fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}
			timerC = timer.C

		case <-timerC:
			w.reload()
			timerC = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	return event.Name == w.path &&
		(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename))
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("rules reload failed, keeping previous engine", zap.Error(err))
		return
	}
	w.current.Store(New(cfg))
	w.logger.Info("rules reloaded", zap.Int("version", cfg.Version))
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
