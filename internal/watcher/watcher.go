// Package watcher monitors the relay's configuration file for changes.
// Configuration is read once at startup; when the file changes on disk the
// watcher logs a warning that a restart is required, so operators notice
// edits that have not taken effect.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounceDelay is how long the watcher waits after a file change
// before logging, so editors that write in several steps produce one notice.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher watches a single config file via its parent directory. Watching
// the directory instead of the file survives the rename-and-replace save
// strategy most editors use.
type Watcher struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	logger        zerolog.Logger

	debounce *time.Timer
	wg       sync.WaitGroup

	// onChange is called after debouncing. Overridable in tests.
	onChange func()
}

// New creates a watcher for the config file at path.
func New(path string, debounceDelay time.Duration, logger zerolog.Logger) *Watcher {
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounceDelay
	}
	w := &Watcher{
		path:          path,
		debounceDelay: debounceDelay,
		logger:        logger,
	}
	w.onChange = w.logRestartNotice
	return w
}

// Start begins watching. It returns an error if the watch cannot be
// established; afterwards the watcher runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.watchLoop(ctx, fsw)
	return nil
}

// Wait blocks until the watch loop has exited.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceNotify()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) debounceNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, w.onChange)
}

func (w *Watcher) logRestartNotice() {
	w.logger.Warn().
		Str("path", w.path).
		Msg("Configuration file changed on disk; restart wolrelay to apply")
}
