// Package watch republishes a session-info YAML file every time it changes
// on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/crbraun/irsdkrec/internal/logging"
	"github.com/crbraun/irsdkrec/internal/sessioninfo"
)

const DefaultDebounce = 100 * time.Millisecond

// Publisher receives each parsed document. *irsdk.Memory implements it.
type Publisher interface {
	SetSessionInfo(n *sessioninfo.Node)
}

// Notifier is woken after each publish. *recorder.Recorder implements it.
type Notifier interface {
	NotifySessionInfo()
}

type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	pub      Publisher
	notify   Notifier
	debounce time.Duration
	log      *zap.Logger

	pendingSince time.Time
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	closed       bool

	loads  atomic.Uint64
	errors atomic.Uint64
}

func New(path string, pub Publisher, notify Notifier, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce < 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		path:     abs,
		pub:      pub,
		notify:   notify,
		debounce: debounce,
		log:      logging.OrNop(logger).With(zap.String("path", abs)),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start publishes the file once if it exists, then watches its directory so
// editors that replace the file by rename are followed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.path, fsnotify.ErrClosed)
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	if _, err := os.Stat(w.path); err == nil {
		w.load()
	}
	go w.run(ctx)
	w.log.Debug("watching session info file")
	return nil
}

// Stop ends the watch loop, if any, and releases the fsnotify watcher. It is
// safe to call more than once and on a Watcher that never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("close fsnotify watcher", zap.Error(err))
	}
}

// Loaded counts successful publishes.
func (w *Watcher) Loaded() uint64 {
	return w.loads.Load()
}

// Errors counts documents that could not be read or parsed.
func (w *Watcher) Errors() uint64 {
	return w.errors.Load()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	interval := w.debounce / 4
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.errors.Add(1)
			w.log.Warn("fsnotify error", zap.Error(err))
		case now := <-ticker.C:
			if !w.pendingSince.IsZero() && now.Sub(w.pendingSince) >= w.debounce {
				w.pendingSince = time.Time{}
				w.load()
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	// every event pushes the deadline out so a burst of writes loads once
	w.pendingSince = time.Now()
}

func (w *Watcher) load() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.errors.Add(1)
			w.log.Warn("read session info", zap.Error(err))
		}
		return
	}
	tree, err := sessioninfo.ParseYAML(data)
	if err != nil {
		w.errors.Add(1)
		w.log.Warn("skipping unparsable session info", zap.Error(err))
		return
	}
	if tree == nil {
		return
	}
	w.pub.SetSessionInfo(tree)
	w.notify.NotifySessionInfo()
	w.loads.Add(1)
	w.log.Debug("session info published", zap.Int("bytes", len(data)))
}
