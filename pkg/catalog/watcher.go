package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/fsnotify/fsnotify"

	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
)

const (
	defaultReingestDebounce = 2 * time.Second
	defaultFlushDebounce    = 30 * time.Second
)

// Reingester rebuilds both indices from the catalog file.
type Reingester interface {
	Reingest(ctx context.Context, path string) (int, error)
}

// Flusher persists the semantic index snapshot. Optional; without one
// the watcher only reingests.
type Flusher interface {
	IsDirty() bool
	Flush() error
}

// Watcher reloads the catalog when its file changes, with two debounce
// tiers:
//   - short debounce (2s): reingests records into both indices
//   - long debounce (30s): flushes the vector snapshot to disk
//
// An optional cron expression forces periodic full rebuilds regardless
// of file events.
type Watcher struct {
	ing    Reingester
	path   string
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debounce      time.Duration
	flushDebounce time.Duration
	flusher       Flusher
	rebuildCron   string
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithFlushDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.flushDebounce = d }
}

func WithFlusher(f Flusher) WatcherOption {
	return func(w *Watcher) { w.flusher = f }
}

// WithRebuildCron schedules unconditional reingests, e.g. "0 3 * * *"
// for a nightly rebuild.
func WithRebuildCron(expr string) WatcherOption {
	return func(w *Watcher) { w.rebuildCron = expr }
}

// NewWatcher watches the directory holding the catalog file, so that
// editors replacing the file via rename are still observed.
func NewWatcher(ing Reingester, path string, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		ing:           ing,
		path:          filepath.Clean(path),
		fsw:           fsw,
		debounce:      defaultReingestDebounce,
		flushDebounce: defaultFlushDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.rebuildCron != "" && !gronx.New().IsValid(w.rebuildCron) {
		fsw.Close()
		return nil, fmt.Errorf("invalid rebuild cron %q", w.rebuildCron)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching in a background goroutine. The passed context
// bounds the watcher lifecycle.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop cancels the watcher and waits for the loop to finish.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var reingestTimer *time.Timer
	var flushTimer *time.Timer

	reset := func(t **time.Timer, d time.Duration) {
		if *t == nil {
			*t = time.NewTimer(d)
			return
		}
		if !(*t).Stop() {
			select {
			case <-(*t).C:
			default:
			}
		}
		(*t).Reset(d)
	}

	timerC := func(t *time.Timer) <-chan time.Time {
		if t == nil {
			return nil
		}
		return t.C
	}

	var cronTimer *time.Timer
	scheduleCron := func() {
		if w.rebuildCron == "" {
			return
		}
		next, err := gronx.NextTickAfter(w.rebuildCron, time.Now(), false)
		if err != nil {
			logger.Warn(fmt.Sprintf("catalog watcher: cron schedule: %v", err))
			return
		}
		cronTimer = time.NewTimer(time.Until(next))
	}
	scheduleCron()

	for {
		select {
		case <-ctx.Done():
			w.flushIfDirty()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isRelevant(ev) {
				continue
			}
			reset(&reingestTimer, w.debounce)
			reset(&flushTimer, w.flushDebounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn(fmt.Sprintf("catalog watcher error: %v", err))

		case <-timerC(reingestTimer):
			reingestTimer = nil
			w.reingest(ctx)

		case <-timerC(flushTimer):
			flushTimer = nil
			w.flushIfDirty()

		case <-timerC(cronTimer):
			cronTimer = nil
			w.reingest(ctx)
			w.flushIfDirty()
			scheduleCron()
		}
	}
}

func (w *Watcher) isRelevant(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return filepath.Clean(ev.Name) == w.path
}

func (w *Watcher) reingest(ctx context.Context) {
	n, err := w.ing.Reingest(ctx, w.path)
	if err != nil {
		logger.Warn(fmt.Sprintf("catalog watcher reingest: %v", err))
		return
	}
	logger.Info(fmt.Sprintf("catalog watcher: reingested %d services", n))
}

func (w *Watcher) flushIfDirty() {
	if w.flusher == nil || !w.flusher.IsDirty() {
		return
	}
	if err := w.flusher.Flush(); err != nil {
		logger.Warn(fmt.Sprintf("catalog watcher flush: %v", err))
		return
	}
	logger.Info("catalog watcher: flushed vector snapshot")
}
