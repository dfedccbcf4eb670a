package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"recipecast/internal/config"
	"recipecast/internal/logging"
	"recipecast/internal/notifications"
	"recipecast/internal/publish"
	"recipecast/internal/queue"
	"recipecast/internal/recipes"
	"recipecast/internal/transcode"
	"recipecast/internal/upload"
)

// Manager coordinates queue processing. Submissions are processed strictly
// one at a time; single-flight execution is the orchestrator's contract.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor
	newRun       RunFactory

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// RunFactory builds a fresh orchestrator per submission. Orchestrator
// instances are single-use, so the manager never shares one between items.
type RunFactory func() (*publish.Orchestrator, error)

// NewManager constructs a workflow manager with the production pipeline.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	notifier := notifications.NewService(cfg)
	transcoder := transcode.New(cfg.FFmpegBinary(), transcode.ProfileFromConfig(cfg))
	factory := func() (*publish.Orchestrator, error) {
		return publish.New(publish.Deps{
			Config:     cfg,
			Store:      store,
			Logger:     logger,
			Transcoder: transcoder,
			Uploader:   upload.NewClient(cfg),
			Submitter:  recipes.NewClient(cfg),
			Notifier:   notifier,
		})
	}
	return NewManagerWithFactory(cfg, store, logger, notifier, factory)
}

// NewManagerWithFactory constructs a manager with a custom orchestrator
// factory (used in tests).
func NewManagerWithFactory(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, factory RunFactory) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		newRun:       factory,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.newRun == nil {
		return errors.New("workflow orchestrator factory not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.runLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the manager loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the most recent queue access failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldComponent, "workflow"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("reclaim stale processing failed", logging.Error(err))
		}

		sub, err := m.store.NextForStatuses(ctx, queue.StatusPending)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to fetch next submission", logging.Error(err))
			m.waitOrShutdown(ctx)
			continue
		}
		if sub == nil {
			m.waitOrShutdown(ctx)
			continue
		}

		if err := m.processSubmission(ctx, logger, sub); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) processSubmission(ctx context.Context, logger *slog.Logger, sub *queue.Submission) error {
	orch, err := m.newRun()
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to build publish pipeline", logging.Error(err))
		m.waitOrShutdown(ctx)
		return err
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, sub.ID)

	runErr := orch.Run(ctx, sub)
	stopHeartbeat()
	hbWG.Wait()

	if runErr != nil {
		// Terminal persistence already happened inside the orchestrator;
		// the loop just records the failure and moves on. When shutdown
		// interrupted the run, relabel the failure so the queue shows the
		// stop reason instead of a raw cancellation error.
		if ctx.Err() != nil && sub.Status == queue.StatusFailed {
			sub.SetFailed(queue.DaemonStopReason)
			persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := m.store.Update(persistCtx, sub); err != nil {
				logger.Error("failed to record daemon stop", logging.Error(err))
			}
		}
		m.setLastError(runErr)
	}
	return runErr
}

func (m *Manager) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
