// Package watch monitors a drop directory and enqueues new audio files
// for conversion. Files are enqueued only after their size stops
// changing, so partially copied files are never picked up.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/queue"
)

var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".aac":  {},
	".aiff": {},
	".opus": {},
}

// IsAudioFile reports whether the path carries a recognized audio
// extension.
func IsAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

type candidate struct {
	size     int64
	lastSeen time.Time
}

// Watcher enqueues audio files dropped into the watch directory.
type Watcher struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	dir           string
	settle        time.Duration
	sweepInterval time.Duration

	mu         sync.Mutex
	running    bool
	candidates map[string]candidate
	enqueued   map[string]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a watcher over the configured watch directory.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("watcher requires config and store")
	}
	dir := strings.TrimSpace(cfg.Paths.WatchDir)
	if dir == "" {
		return nil, errors.New("watch directory not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	settle := time.Duration(cfg.Watch.SettleSeconds) * time.Second
	if settle < 0 {
		settle = 0
	}
	return &Watcher{
		cfg:           cfg,
		store:         store,
		logger:        logger.With(logging.String("component", "watch")),
		dir:           dir,
		settle:        settle,
		sweepInterval: time.Second,
		candidates:    map[string]candidate{},
		enqueued:      map[string]struct{}{},
	}, nil
}

// Start begins watching. Files already present in the directory are
// treated as new arrivals.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := notifier.Add(w.dir); err != nil {
		_ = notifier.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.scanExisting()

	w.wg.Add(1)
	go w.loop(runCtx, notifier)
	return nil
}

// Stop halts the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, notifier *fsnotify.Watcher) {
	defer w.wg.Done()
	defer notifier.Close()

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-notifier.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.observe(event.Name)
			}
		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// scanExisting seeds the candidate set with files already present when
// the watcher starts.
func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("initial directory scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.observe(filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) observe(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !IsAudioFile(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.enqueued[path]; done {
		return
	}
	w.candidates[path] = candidate{size: info.Size(), lastSeen: time.Now()}
}

// sweep enqueues candidates whose size has been stable for the settle
// period.
func (w *Watcher) sweep(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	ready := make([]string, 0, len(w.candidates))
	for path, cand := range w.candidates {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.candidates, path)
			continue
		}
		if info.Size() != cand.size {
			w.candidates[path] = candidate{size: info.Size(), lastSeen: now}
			continue
		}
		if now.Sub(cand.lastSeen) >= w.settle {
			ready = append(ready, path)
			delete(w.candidates, path)
			w.enqueued[path] = struct{}{}
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.enqueue(ctx, path)
	}
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	projectID := ProjectIDForFile(path)
	item, err := w.store.NewProject(ctx, projectID, path, "")
	if err != nil {
		w.logger.Error("failed to enqueue dropped file",
			logging.String("path", path),
			logging.Error(err))
		return
	}
	w.logger.Info("enqueued dropped file",
		logging.String("path", path),
		logging.String("project_id", item.ProjectID))
}

// ProjectIDForFile derives a unique project id from a file name.
func ProjectIDForFile(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	slug := sanitizeSlug(stem)
	suffix := uuid.NewString()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}

func sanitizeSlug(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
