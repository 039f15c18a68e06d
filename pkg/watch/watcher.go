package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sdejongh/dirdiff/pkg/logging"
)

// DefaultDebounce is the quiet period used when none is configured
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher
type Config struct {
	// Roots are the local directory trees to watch recursively
	Roots []string

	// Debounce is the quiet period after the last change before OnChange runs
	Debounce time.Duration

	// Ignore reports whether a root-relative, slash-separated path is skipped
	Ignore func(rel string, isDir bool) bool

	Logger logging.Logger
}

// Watcher re-runs a callback whenever one of its trees changes
type Watcher struct {
	cfg       Config
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger
}

// New creates a watcher and registers every directory below the roots
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no directories to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		cfg:       cfg,
		fsw:       fsw,
		debouncer: NewDebouncer(cfg.Debounce),
		logger:    logging.OrNull(cfg.Logger),
	}

	for _, root := range cfg.Roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// addTree watches dir and every directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			w.logger.Warn(context.Background(), "Skipping unreadable directory", logging.Fields{"path": path, "error": err.Error()})
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored maps an absolute path onto its root and applies the ignore rule
func (w *Watcher) ignored(path string, isDir bool) bool {
	if w.cfg.Ignore == nil {
		return false
	}
	for _, root := range w.cfg.Roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return w.cfg.Ignore(filepath.ToSlash(rel), isDir)
	}
	return false
}

// Run calls onChange once per debounced burst of changes until ctx is done.
// An error from onChange is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	defer w.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "File watcher error", logging.Fields{"error": err.Error()})

		case <-w.debouncer.C():
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error(ctx, "Re-run after change failed", err, nil)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if w.ignored(event.Name, isDir) {
		return
	}

	w.logger.Debug(ctx, "Change detected", logging.Fields{
		"path": event.Name,
		"op":   event.Op.String(),
	})

	if isDir {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn(ctx, "Failed to watch new directory", logging.Fields{"path": event.Name, "error": err.Error()})
		}
	}
	w.debouncer.Trigger()
}

// Close releases the underlying watcher
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsw.Close()
}
