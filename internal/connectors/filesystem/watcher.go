// Package filesystem watches a local directory for documents to ingest.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/pdfrag/internal/logger"
)

// DefaultSettle is how long a file must stay unchanged before it is reported.
const DefaultSettle = 2 * time.Second

// Watcher reports files that appear or change in a directory.
// Only regular, non-hidden files with a matching extension are reported.
type Watcher struct {
	dir    string
	exts   []string
	settle time.Duration
	now    func() time.Time
}

// NewWatcher creates a watcher for dir. exts are matched case-insensitively,
// with the leading dot. settle <= 0 uses DefaultSettle.
func NewWatcher(dir string, exts []string, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	lower := make([]string, len(exts))
	for i, ext := range exts {
		lower[i] = strings.ToLower(ext)
	}
	return &Watcher{
		dir:    dir,
		exts:   lower,
		settle: settle,
		now:    time.Now,
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Watch starts watching and returns a channel of file paths. A path is sent
// once no further events for it arrived during the settle period, so files
// still being copied are not reported half-written. The channel is closed
// when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}

	out := make(chan string)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	defer close(out)
	defer fw.Close()

	tick := max(w.settle/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if path, ok := w.handleFsEvent(event); ok {
				pending[path] = w.now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch %s: %v", w.dir, err)

		case <-ticker.C:
			for _, path := range w.settled(pending) {
				delete(pending, path)
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// settled returns pending paths quiet for at least the settle period, sorted.
func (w *Watcher) settled(pending map[string]time.Time) []string {
	now := w.now()
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
		}
	}
	slices.Sort(ready)
	return ready
}

// handleFsEvent maps a raw event to a path worth ingesting.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	if !slices.Contains(w.exts, strings.ToLower(filepath.Ext(name))) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}
