package transcode

import (
	"context"
	"errors"
	"strings"
)

// PassthroughTranscoder hands the original file downstream unchanged. It is
// selected when no ffmpeg binary resolves at startup.
type PassthroughTranscoder struct{}

// NewPassthrough constructs the pass-through implementation.
func NewPassthrough() *PassthroughTranscoder {
	return &PassthroughTranscoder{}
}

// Passthrough reports true.
func (p *PassthroughTranscoder) Passthrough() bool { return true }

// Transcode returns the input unchanged and emits the single terminal update.
func (p *PassthroughTranscoder) Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, errors.New("input path required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if progress != nil {
		progress(ProgressUpdate{Fraction: 1, Message: "Encoder unavailable, using original file"})
	}
	return Result{OutputPath: req.InputPath, Passthrough: true}, nil
}

var _ Transcoder = (*PassthroughTranscoder)(nil)
