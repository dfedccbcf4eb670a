package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"recipecast/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the CLI transcoder.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary  string
	profile Profile
}

// NewCLI constructs a CLI transcoder using defaults.
func NewCLI(profile Profile, opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", profile: profile}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Passthrough reports false: the CLI always re-encodes.
func (c *CLI) Passthrough() bool { return false }

// Transcode launches ffmpeg and streams progress until the encode finishes.
// Any exit other than success removes the partial output file.
func (c *CLI) Transcode(ctx context.Context, req Request, progress func(ProgressUpdate)) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, errors.New("input path required")
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return Result{}, errors.New("output directory required")
	}

	base := filepath.Base(req.InputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	outputPath := filepath.Join(outputDir, stem+".mp4")
	if sameFile(outputPath, req.InputPath) {
		outputPath = filepath.Join(outputDir, stem+".transcoded.mp4")
	}

	args := c.buildArgs(req, outputPath)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start ffmpeg: %w", err)
	}

	emitted := 0.0
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok || key != "out_time_us" {
			continue
		}
		outTimeUs, parseErr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if parseErr != nil || req.DurationSeconds <= 0 {
			continue
		}
		fraction := (float64(outTimeUs) / 1e6) / req.DurationSeconds
		// Hold below 1 until ffmpeg exits so the terminal update always
		// follows a complete file.
		if fraction > 0.99 {
			fraction = 0.99
		}
		if fraction <= emitted {
			continue
		}
		emitted = fraction
		if progress != nil {
			progress(ProgressUpdate{Fraction: fraction, Message: "Compressing video"})
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		removePartial(outputPath)
		return Result{}, fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		removePartial(outputPath)
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, lastLines(detail, 5))
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", "encode failed", err)
	}

	if progress != nil {
		progress(ProgressUpdate{Fraction: 1, Message: "Compression complete"})
	}
	return Result{OutputPath: outputPath}, nil
}

func (c *CLI) buildArgs(req Request, outputPath string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", req.InputPath,
	}
	plan := c.profile.PlanFor(req.Width, req.Height)
	// A scale filter is also needed for sources that fit under MaxDimension
	// but carry odd dimensions, which libx264 refuses.
	needsScale := plan.Scaled || plan.Width != req.Width || plan.Height != req.Height
	if needsScale && plan.Width > 0 && plan.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", plan.Width, plan.Height))
	}
	args = append(args, "-c:v", "libx264", "-preset", "medium")
	if c.profile.TargetBitrateBps > 0 {
		bitrate := strconv.Itoa(c.profile.TargetBitrateBps)
		args = append(args, "-b:v", bitrate, "-maxrate", bitrate, "-bufsize", strconv.Itoa(c.profile.TargetBitrateBps*2))
	}
	if c.profile.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(c.profile.FrameRate))
	}
	args = append(args,
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		"-loglevel", "error",
		outputPath,
	)
	return args
}

func removePartial(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func sameFile(a, b string) bool {
	cleanA, errA := filepath.Abs(a)
	cleanB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return cleanA == cleanB
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

var _ Transcoder = (*CLI)(nil)
