// Package watcher ingests PDF files as they appear in a directory.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// DefaultSettle is how long a file must stay unchanged before it is handled.
const DefaultSettle = 2 * time.Second

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Watcher reports settled PDF files in one directory to a Handler.
// Files are handled one at a time in the order they settle.
type Watcher struct {
	dir    string
	settle time.Duration
	handle Handler
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period after the last write.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New creates a watcher for dir.
func New(dir string, handle Handler, opts ...Option) *Watcher {
	w := &Watcher{
		dir:    dir,
		settle: DefaultSettle,
		handle: handle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. Handler errors are logged and do not
// stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("Watching %s for PDF files", w.dir)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan settled)
	pending := make(map[string]settled)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	var gen uint64
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !isCandidate(ev) {
				continue
			}
			if t, ok := timers[ev.Name]; ok {
				t.Stop()
			}
			gen++
			s := settled{path: ev.Name, gen: gen}
			pending[s.path] = s
			timers[s.path] = time.AfterFunc(w.settle, func() {
				select {
				case ready <- s:
				case <-ctx.Done():
				}
			})

		case s := <-ready:
			// A later event replaced this timer.
			if pending[s.path] != s {
				continue
			}
			delete(pending, s.path)
			delete(timers, s.path)
			logger.Debug("File settled: %s", s.path)
			if err := w.handle(ctx, s.path); err != nil {
				logger.Warn("Failed to ingest %s: %v", s.path, err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// settled identifies one scheduled timer for a path.
type settled struct {
	path string
	gen  uint64
}

// isCandidate reports whether ev creates or writes a visible PDF file.
func isCandidate(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
