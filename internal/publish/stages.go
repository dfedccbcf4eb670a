package publish

import (
	"context"
	"fmt"
	"os"

	"recipecast/internal/logging"
	"recipecast/internal/queue"
	"recipecast/internal/recipes"
	"recipecast/internal/services"
	"recipecast/internal/sizeguard"
	"recipecast/internal/transcode"
	"recipecast/internal/upload"
)

func (o *Orchestrator) ceiling() int64 {
	return int64(o.deps.Config.Video.SizeCeilingBytes)
}

// checkOriginalSize probes the source file and applies the ceiling to the
// raw asset. The original is checked even though transcoding may shrink it;
// obviously oversized captures are refused before any work is spent.
func (o *Orchestrator) checkOriginalSize(ctx context.Context, sub *queue.Submission) error {
	asset, err := o.deps.Probe(ctx, o.deps.Config.FFprobeBinary(), sub.SourcePath)
	if err != nil {
		return err
	}
	o.asset = asset
	sub.OriginalSizeBytes = asset.SizeBytes

	verdict := sizeguard.Check(asset.SizeBytes, o.ceiling())
	if !verdict.Ok() {
		return services.Wrap(services.ErrRejected, "sizeguard", "check original",
			fmt.Sprintf("original %s", verdict.Describe()), nil)
	}
	sub.SetProgress(stageLabel(queue.StatusCheckingSize), verdict.Describe(), 100)
	return nil
}

// transcodeStage shrinks the source toward the profile targets. In
// pass-through mode the original file moves downstream unchanged and no
// compressing events are emitted.
func (o *Orchestrator) transcodeStage(ctx context.Context, sub *queue.Submission) error {
	if o.deps.Transcoder.Passthrough() {
		sub.Passthrough = true
		sub.StagedFile = sub.SourcePath
		sub.SetProgressComplete(stageLabel(queue.StatusTranscoding), "Encoder unavailable, using original file")
		return nil
	}

	if o.asset.DurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "transcode", "plan",
			fmt.Sprintf("source %s has unknown duration", sub.SourcePath), nil)
	}

	if err := os.MkdirAll(o.deps.Config.StagingDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcode", "staging",
			"create staging directory", err)
	}

	result, err := o.deps.Transcoder.Transcode(ctx, transcode.Request{
		InputPath:       sub.SourcePath,
		OutputDir:       o.deps.Config.StagingDir(),
		Width:           o.asset.Width,
		Height:          o.asset.Height,
		DurationSeconds: o.asset.DurationSeconds,
	}, func(update transcode.ProgressUpdate) {
		o.emit(ProgressEvent{Phase: PhaseCompressing, Fraction: update.Fraction, Message: update.Message})
		sub.SetProgress(stageLabel(queue.StatusTranscoding), update.Message, update.Fraction*100)
		o.persistProgress(ctx, sub)
	})
	if err != nil {
		return err
	}

	sub.Passthrough = result.Passthrough
	sub.StagedFile = result.OutputPath
	return nil
}

// checkTranscodedSize re-measures the staged file from disk and applies the
// ceiling again. The transcode bitrate is a target, not a guarantee.
func (o *Orchestrator) checkTranscodedSize(ctx context.Context, sub *queue.Submission) error {
	info, err := os.Stat(sub.StagedFile)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "sizeguard", "stat output",
			fmt.Sprintf("staged file %s", sub.StagedFile), err)
	}
	sub.FinalSizeBytes = info.Size()

	verdict := sizeguard.Check(info.Size(), o.ceiling())
	if !verdict.Ok() {
		return services.Wrap(services.ErrRejected, "sizeguard", "check transcoded",
			fmt.Sprintf("transcoded %s", verdict.Describe()), nil)
	}

	if !sub.Passthrough && sub.OriginalSizeBytes > 0 {
		saved := 100 * (1 - float64(sub.FinalSizeBytes)/float64(sub.OriginalSizeBytes))
		logging.WithContext(ctx, o.deps.Logger).Info("transcode size result",
			logging.String("original_size", sizeguard.FormatBytes(sub.OriginalSizeBytes)),
			logging.String("final_size", sizeguard.FormatBytes(sub.FinalSizeBytes)),
			logging.String("saved", fmt.Sprintf("%.1f%%", saved)),
		)
	}

	sub.SetProgress(stageLabel(queue.StatusCheckingOutput), verdict.Describe(), 100)
	return nil
}

// uploadStage streams the staged file to the server and records the hosted
// URL on the submission.
func (o *Orchestrator) uploadStage(ctx context.Context, sub *queue.Submission) error {
	url, err := o.deps.Uploader.UploadVideo(ctx, sub.StagedFile, func(update upload.ProgressUpdate) {
		o.emit(ProgressEvent{
			Phase:      PhaseUploading,
			Fraction:   update.Fraction,
			Message:    "Uploading video",
			BytesSent:  update.BytesSent,
			TotalBytes: update.TotalBytes,
		})
		sub.ProgressBytesSent = update.BytesSent
		sub.ProgressTotalBytes = update.TotalBytes
		sub.SetProgress(stageLabel(queue.StatusUploading), "Uploading video", update.Fraction*100)
		o.persistProgress(ctx, sub)
	})
	if err != nil {
		return err
	}
	sub.VideoURL = url
	return nil
}

// submitStage posts the recipe draft referencing the hosted video. A failure
// here is partial success: the video is on the server but no recipe exists,
// and the error message says so explicitly.
func (o *Orchestrator) submitStage(ctx context.Context, sub *queue.Submission) error {
	o.emit(ProgressEvent{Phase: PhaseSubmitting, Fraction: 0.01, Message: "Submitting recipe"})

	draft, err := recipes.UnmarshalDraft(sub.RecipeDraftJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "recipes", "load draft",
			"submission has no recipe draft", err)
	}
	draft.VideoURL = sub.VideoURL

	if err := o.deps.Submitter.Submit(ctx, draft); err != nil {
		return fmt.Errorf("video uploaded to %s but recipe submission failed: %w", sub.VideoURL, err)
	}

	o.emit(ProgressEvent{Phase: PhaseSubmitting, Fraction: 1, Message: "Recipe submitted"})
	sub.SetProgressComplete(stageLabel(queue.StatusSubmitting), "Recipe submitted")
	return nil
}
