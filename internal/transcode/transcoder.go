package transcode

import (
	"context"
	"os/exec"
	"strings"
)

// ProgressUpdate reports encode progress as a fraction in [0, 1]. Fractions
// are monotonic and exactly one update with Fraction == 1 is delivered, after
// the output file is complete on disk.
type ProgressUpdate struct {
	Fraction float64
	Message  string
}

// Request describes one encode job. DurationSeconds comes from the probe of
// the source and drives fraction computation.
type Request struct {
	InputPath       string
	OutputDir       string
	Width           int
	Height          int
	DurationSeconds float64
}

// Result is the outcome of a completed transcode.
type Result struct {
	OutputPath string
	// Passthrough is true when the original file was handed through without
	// re-encoding.
	Passthrough bool
}

// Transcoder converts a source video into the upload-ready rendition.
type Transcoder interface {
	Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error)
	// Passthrough reports whether this implementation re-encodes at all.
	Passthrough() bool
}

// New selects the encoder implementation at startup: the ffmpeg CLI when the
// configured binary resolves on PATH, otherwise pass-through.
func New(binary string, profile Profile) Transcoder {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return NewPassthrough()
	}
	return NewCLI(profile, WithBinary(binary))
}
