package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"recipecast/internal/config"
	"recipecast/internal/logging"
	"recipecast/internal/notifications"
	"recipecast/internal/queue"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true,
	".webm": true, ".avi": true, ".m4v": true,
}

// IsVideoFile reports whether a path carries a supported video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Watcher monitors the configured drop folder and enqueues submissions for
// settled video/sidecar pairs.
type Watcher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	dir    string
	settle time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// onEnqueue is invoked after a submission is persisted (used in tests).
	onEnqueue func(*queue.Submission)
}

// NewWatcher builds a drop-folder watcher. The watch directory must be set.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Watcher, error) {
	dir := strings.TrimSpace(cfg.Paths.WatchDir)
	if dir == "" {
		return nil, errors.New("paths.watch_dir is not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		cfg:      cfg,
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "watch")),
		notifier: notifications.NewService(cfg),
		dir:      dir,
		settle:   time.Duration(cfg.Workflow.SettleSeconds) * time.Second,
		pending:  make(map[string]time.Time),
	}, nil
}

// Start begins watching. Files already present in the folder are treated as
// freshly dropped so a restart never misses work.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.sweepExisting()

	w.wg.Add(1)
	go w.run(runCtx, fsw)
	return nil
}

// Stop terminates the watcher and waits for the loop to exit.
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

	cancel()
	w.wg.Wait()
}

func (w *Watcher) sweepExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("drop folder scan failed", logging.Error(err))
		return
	}
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if IsVideoFile(path) {
			w.pending[path] = now
		}
	}
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	tick := w.settle
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case IsVideoFile(event.Name):
		w.pending[event.Name] = now
	case IsSidecar(event.Name):
		// The sidecar may land after its video. Re-arm any candidate that
		// shares the sidecar's basename.
		prefix := VideoPathFor(event.Name)
		for ext := range videoExtensions {
			candidate := prefix + ext
			if _, err := os.Stat(candidate); err == nil {
				w.pending[candidate] = now
			}
		}
	}
}

func (w *Watcher) processSettled(ctx context.Context) {
	cutoff := time.Now().Add(-w.settle)

	w.mu.Lock()
	ready := make([]string, 0, len(w.pending))
	for path, seen := range w.pending {
		if seen.Before(cutoff) || seen.Equal(cutoff) {
			ready = append(ready, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		done := w.tryEnqueue(ctx, path)
		if done {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}
	}
}

// tryEnqueue attempts to enqueue one settled candidate. It reports true when
// the candidate should be dropped from the pending set, either because it was
// enqueued or because it can never succeed.
func (w *Watcher) tryEnqueue(ctx context.Context, videoPath string) bool {
	info, err := os.Stat(videoPath)
	if err != nil {
		// Removed before it settled.
		return true
	}
	if time.Since(info.ModTime()) < w.settle {
		return false
	}

	sidecarPath := SidecarPath(videoPath)
	scInfo, err := os.Stat(sidecarPath)
	if err != nil {
		// Keep waiting for the recipe to arrive.
		return false
	}
	if time.Since(scInfo.ModTime()) < w.settle {
		return false
	}

	existing, err := w.store.FindBySourcePath(ctx, videoPath)
	if err != nil {
		w.logger.Warn("queue lookup failed", logging.String("path", videoPath), logging.Error(err))
		return false
	}
	if existing != nil {
		if existing.Status != queue.StatusFailed && existing.Status != queue.StatusRejected {
			// Already queued, in flight, or published.
			return true
		}
		if queue.IsUserStopReason(existing.ErrorMessage) {
			// The user stopped this one; only an explicit retry revives it.
			return true
		}
	}

	draft, err := LoadSidecar(sidecarPath)
	if err != nil {
		w.logger.Warn("sidecar rejected", logging.String("path", sidecarPath), logging.Error(err))
		return true
	}
	raw, err := draft.Marshal()
	if err != nil {
		w.logger.Warn("sidecar rejected", logging.String("path", sidecarPath), logging.Error(err))
		return true
	}

	sub, err := w.store.NewSubmission(ctx, videoPath, draft.Title)
	if err != nil {
		w.logger.Error("enqueue failed", logging.String("path", videoPath), logging.Error(err))
		return false
	}
	sub.RecipeDraftJSON = raw
	if err := w.store.Update(ctx, sub); err != nil {
		w.logger.Error("enqueue failed", logging.String("path", videoPath), logging.Error(err))
		return false
	}

	w.logger.Info("submission enqueued from drop folder",
		logging.Int64(logging.FieldSubmissionID, sub.ID),
		logging.String("path", videoPath),
		logging.String("title", draft.Title),
	)
	if w.notifier != nil {
		if err := w.notifier.NotifySubmissionQueued(ctx, draft.Title); err != nil {
			w.logger.Debug("queued notification failed", logging.Error(err))
		}
	}
	if w.onEnqueue != nil {
		w.onEnqueue(sub)
	}
	return true
}
