package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports scene names whose source changed on disk. It expects the
// file store layout <root>/<scene>/<scene>.json and watches every scene
// directory present at start plus ones created later.
type Watcher struct {
	root    string
	fs      *fsnotify.Watcher
	changes chan string
	logger  *slog.Logger
}

// NewWatcher starts watching the scenes directory at root.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{root: root, fs: fw, changes: make(chan string, 16), logger: logger}
	if err := w.add(root); err != nil {
		fw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read scenes dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.add(filepath.Join(root, e.Name())); err != nil {
				fw.Close()
				return nil, err
			}
		}
	}
	return w, nil
}

func (w *Watcher) add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return nil
}

// Changes delivers scene names; it is closed when Run returns.
func (w *Watcher) Changes() <-chan string { return w.changes }

// Run pumps file events until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("scene watcher error", "error", err)
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	dir := filepath.Dir(ev.Name)
	if dir == filepath.Clean(w.root) {
		// A new scene directory.
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := w.add(ev.Name); err != nil {
					w.logger.Warn("scene watcher add failed", "dir", ev.Name, "error", err)
				}
			}
		}
		return
	}
	name, ok := sceneName(ev.Name)
	if !ok || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
		return
	}
	select {
	case w.changes <- name:
	case <-ctx.Done():
	}
}

// sceneName maps <root>/<scene>/<scene>.json back to <scene>.
func sceneName(path string) (string, bool) {
	base := filepath.Base(path)
	dir := filepath.Base(filepath.Dir(path))
	if strings.TrimSuffix(base, ".json") != dir || !strings.HasSuffix(base, ".json") {
		return "", false
	}
	return dir, true
}
