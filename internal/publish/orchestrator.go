package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"recipecast/internal/config"
	"recipecast/internal/logging"
	"recipecast/internal/media"
	"recipecast/internal/notifications"
	"recipecast/internal/queue"
	"recipecast/internal/recipes"
	"recipecast/internal/services"
	"recipecast/internal/staging"
	"recipecast/internal/transcode"
	"recipecast/internal/upload"
)

// VideoUploader is the upload transport contract the orchestrator consumes.
type VideoUploader interface {
	UploadVideo(ctx context.Context, path string, progress func(upload.ProgressUpdate)) (string, error)
}

// MetadataSubmitter posts the recipe draft once the video is hosted.
type MetadataSubmitter interface {
	Submit(ctx context.Context, draft recipes.Draft) error
}

// ProbeFunc resolves a source path into a measured Asset.
type ProbeFunc func(ctx context.Context, ffprobeBinary, path string) (media.Asset, error)

// Deps collects everything an orchestrator run needs.
type Deps struct {
	Config     *config.Config
	Store      *queue.Store
	Logger     *slog.Logger
	Transcoder transcode.Transcoder
	Uploader   VideoUploader
	Submitter  MetadataSubmitter
	Notifier   notifications.Service
	// Probe defaults to media.FromFile.
	Probe      ProbeFunc
	OnProgress func(ProgressEvent)
	OnComplete func(Outcome)
}

// Orchestrator runs one submission through the publish state machine. An
// instance is single-use: Run refuses a second invocation.
type Orchestrator struct {
	deps Deps

	asset media.Asset

	mu       sync.Mutex
	used     bool
	lastFrac map[Phase]float64
	sampler  *logging.ProgressSampler
	complete sync.Once

	lastPersist time.Time
}

const progressPersistInterval = 2 * time.Second

// New constructs an orchestrator. Deps.Config, Store, Transcoder, Uploader
// and Submitter are required.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("queue store is required")
	}
	if deps.Transcoder == nil {
		return nil, errors.New("transcoder is required")
	}
	if deps.Uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("metadata submitter is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Probe == nil {
		deps.Probe = media.FromFile
	}
	return &Orchestrator{
		deps:     deps,
		lastFrac: make(map[Phase]float64),
		sampler:  logging.NewProgressSampler(0.1),
	}, nil
}

type pipelineStage struct {
	name       string
	processing queue.Status
	run        func(context.Context, *queue.Submission) error
}

// Run executes the full pipeline for one submission and persists every
// transition. The completion callback fires exactly once on every exit path.
func (o *Orchestrator) Run(ctx context.Context, sub *queue.Submission) error {
	o.mu.Lock()
	if o.used {
		o.mu.Unlock()
		return errors.New("orchestrator instance already used")
	}
	o.used = true
	o.mu.Unlock()

	if sub == nil {
		return errors.New("submission is required")
	}
	if queue.IsTerminalStatus(sub.Status) {
		return fmt.Errorf("submission %d already terminal (%s)", sub.ID, sub.Status)
	}

	runCtx := services.WithSubmissionID(ctx, sub.ID)
	runCtx = services.WithRequestID(runCtx, sub.CorrelationID)
	logger := logging.WithContext(runCtx, o.deps.Logger)

	if strings.TrimSpace(sub.SourcePath) == "" {
		err := services.Wrap(services.ErrRejected, "publish", "submit", "no video file selected", nil)
		return o.fail(runCtx, logger, sub, err)
	}

	stages := []pipelineStage{
		{name: "checking original size", processing: queue.StatusCheckingSize, run: o.checkOriginalSize},
		{name: "transcoding", processing: queue.StatusTranscoding, run: o.transcodeStage},
		{name: "checking transcoded size", processing: queue.StatusCheckingOutput, run: o.checkTranscodedSize},
		{name: "uploading", processing: queue.StatusUploading, run: o.uploadStage},
		{name: "submitting metadata", processing: queue.StatusSubmitting, run: o.submitStage},
	}

	for _, st := range stages {
		stageCtx := services.WithStage(runCtx, st.name)
		stageLogger := logging.WithContext(stageCtx, o.deps.Logger)

		o.setProcessing(sub, st.processing, st.name)
		if err := o.deps.Store.Update(stageCtx, sub); err != nil {
			return o.fail(stageCtx, stageLogger, sub, fmt.Errorf("persist %s transition: %w", st.name, err))
		}

		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("processing_status", string(st.processing)),
			logging.String("source_file", sub.SourcePath),
		)

		if err := st.run(stageCtx, sub); err != nil {
			return o.fail(stageCtx, stageLogger, sub, err)
		}
		if err := o.deps.Store.Update(stageCtx, sub); err != nil {
			return o.fail(stageCtx, stageLogger, sub, fmt.Errorf("persist %s result: %w", st.name, err))
		}

		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("progress_stage", sub.ProgressStage),
		)
	}

	sub.Status = queue.StatusPublished
	sub.LastHeartbeat = nil
	sub.SetProgressComplete("Published", fmt.Sprintf("Published %s", sub.Title))
	if err := o.deps.Store.Update(runCtx, sub); err != nil {
		return o.fail(runCtx, logger, sub, fmt.Errorf("persist published state: %w", err))
	}

	logger.Info("submission published",
		logging.String(logging.FieldEventType, "published"),
		logging.String("video_url", sub.VideoURL),
	)
	staging.RemoveArtifact(sub.StagedFile, sub.SourcePath, logger)
	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.NotifyPublished(runCtx, sub.Title, sub.VideoURL); err != nil {
			logger.Debug("publish notification failed", logging.Error(err))
		}
	}

	o.finish(Outcome{SubmissionID: sub.ID, Status: string(queue.StatusPublished), VideoURL: sub.VideoURL})
	return nil
}

// fail maps the error to a terminal status, persists it, notifies, and fires
// the completion callback.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, sub *queue.Submission, runErr error) error {
	details := services.Details(runErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(runErr.Error())
	}

	status := queue.FailureStatus(runErr)
	if status == queue.StatusRejected {
		sub.SetRejected(message)
	} else {
		sub.SetFailed(message)
	}

	logger.Error("publish failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(status)),
		logging.String("error_message", message),
		logging.Error(runErr),
	)
	// Persist with a fresh context so cancellation does not lose the
	// terminal state.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.deps.Store.Update(persistCtx, sub); err != nil {
		logger.Error("failed to persist terminal state", logging.Error(err))
	}

	if o.deps.Notifier != nil {
		if status == queue.StatusRejected {
			if err := o.deps.Notifier.NotifyRejected(persistCtx, sub.Title, message); err != nil {
				logger.Debug("rejection notification failed", logging.Error(err))
			}
		} else {
			if err := o.deps.Notifier.NotifyError(persistCtx, runErr, fmt.Sprintf("submission #%d", sub.ID)); err != nil {
				logger.Debug("error notification failed", logging.Error(err))
			}
		}
	}

	o.finish(Outcome{SubmissionID: sub.ID, Status: string(status), VideoURL: sub.VideoURL, Err: runErr})
	return runErr
}

func (o *Orchestrator) finish(outcome Outcome) {
	o.complete.Do(func() {
		if o.deps.OnComplete != nil {
			o.deps.OnComplete(outcome)
		}
	})
}

func (o *Orchestrator) setProcessing(sub *queue.Submission, status queue.Status, label string) {
	now := time.Now().UTC()
	sub.Status = status
	sub.InitProgress(stageLabel(status), fmt.Sprintf("%s started", label))
	sub.LastHeartbeat = &now
}

// emit forwards a progress event, enforcing per-phase monotonicity so
// downstream consumers never see a bar move backwards and never see a second
// 1.0 for the same phase.
func (o *Orchestrator) emit(event ProgressEvent) {
	o.mu.Lock()
	last, seen := o.lastFrac[event.Phase]
	if seen && event.Fraction <= last {
		o.mu.Unlock()
		return
	}
	if event.Fraction > 1 {
		event.Fraction = 1
	}
	o.lastFrac[event.Phase] = event.Fraction
	shouldLog := o.sampler.ShouldLog(event.Fraction, string(event.Phase))
	o.mu.Unlock()

	if shouldLog {
		o.deps.Logger.Debug("progress",
			logging.String("phase", string(event.Phase)),
			logging.Float64("fraction", event.Fraction),
		)
	}
	if o.deps.OnProgress != nil {
		o.deps.OnProgress(event)
	}
}

// persistProgress throttles queue writes during high-frequency progress.
func (o *Orchestrator) persistProgress(ctx context.Context, sub *queue.Submission) {
	now := time.Now()
	if !o.lastPersist.IsZero() && now.Sub(o.lastPersist) < progressPersistInterval {
		return
	}
	o.lastPersist = now
	if err := o.deps.Store.Update(ctx, sub); err != nil {
		o.deps.Logger.Warn("failed to persist progress", logging.Error(err))
	}
}

func stageLabel(status queue.Status) string {
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
