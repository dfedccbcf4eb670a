package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipecast/internal/services"
)

// writeStubFFmpeg creates a shell script that emits progress lines on stdout
// and writes the output file named by its final argument.
func writeStubFFmpeg(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newEncodeRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Request{
		InputPath:       input,
		OutputDir:       t.TempDir(),
		Width:           1920,
		Height:          1080,
		DurationSeconds: 10,
	}
}

func TestCLITranscodeEmitsMonotonicProgress(t *testing.T) {
	stub := writeStubFFmpeg(t, `
for a in "$@"; do out="$a"; done
echo "out_time_us=2500000"
echo "progress=continue"
echo "out_time_us=2000000"
echo "out_time_us=5000000"
echo "out_time_us=9990000"
echo "out_time_us=12000000"
echo "progress=end"
printf encoded > "$out"
`)
	cli := NewCLI(Profile{MaxDimension: 720, TargetBitrateBps: 2_000_000, FrameRate: 30}, WithBinary(stub))

	req := newEncodeRequest(t)
	var fractions []float64
	result, err := cli.Transcode(context.Background(), req, func(u ProgressUpdate) {
		fractions = append(fractions, u.Fraction)
	})
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if result.Passthrough {
		t.Fatal("CLI result must not be passthrough")
	}
	if filepath.Ext(result.OutputPath) != ".mp4" {
		t.Fatalf("unexpected output path %s", result.OutputPath)
	}
	if _, statErr := os.Stat(result.OutputPath); statErr != nil {
		t.Fatalf("output missing: %v", statErr)
	}

	if len(fractions) < 2 {
		t.Fatalf("expected multiple updates, got %v", fractions)
	}
	last := -1.0
	terminal := 0
	for _, f := range fractions {
		if f < last {
			t.Fatalf("progress regressed: %v", fractions)
		}
		if f > 1 {
			t.Fatalf("fraction above 1: %v", fractions)
		}
		if f == 1 {
			terminal++
		}
		last = f
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal update, got %d (%v)", terminal, fractions)
	}
	if fractions[len(fractions)-1] != 1 {
		t.Fatalf("terminal update must be last: %v", fractions)
	}
}

func TestCLITranscodeFailureRemovesPartialOutput(t *testing.T) {
	stub := writeStubFFmpeg(t, `
for a in "$@"; do out="$a"; done
printf partial > "$out"
echo "out_time_us=1000000"
echo "encoder exploded" >&2
exit 1
`)
	cli := NewCLI(Profile{MaxDimension: 720}, WithBinary(stub))

	req := newEncodeRequest(t)
	sawTerminal := false
	_, err := cli.Transcode(context.Background(), req, func(u ProgressUpdate) {
		if u.Fraction == 1 {
			sawTerminal = true
		}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder exploded") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
	if sawTerminal {
		t.Fatal("failed encode must not emit the terminal update")
	}

	expected := filepath.Join(req.OutputDir, "clip.mp4")
	if _, statErr := os.Stat(expected); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed: %v", statErr)
	}
}

func TestCLIBuildArgsScalesOnlyWhenNeeded(t *testing.T) {
	cli := NewCLI(Profile{MaxDimension: 720, TargetBitrateBps: 2_000_000, FrameRate: 30})

	args := cli.buildArgs(Request{InputPath: "in.mov", Width: 1920, Height: 1080}, "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "scale=720:404") {
		t.Fatalf("expected scale filter, got %s", joined)
	}
	if !strings.Contains(joined, "-b:v 2000000") {
		t.Fatalf("expected bitrate, got %s", joined)
	}
	if !strings.Contains(joined, "-progress pipe:1") {
		t.Fatalf("expected progress flag, got %s", joined)
	}

	small := cli.buildArgs(Request{InputPath: "in.mov", Width: 640, Height: 480}, "out.mp4")
	if strings.Contains(strings.Join(small, " "), "scale=") {
		t.Fatalf("small source should not scale: %v", small)
	}
}

func TestCLIBuildArgsEvensOddDimensions(t *testing.T) {
	cli := NewCLI(Profile{MaxDimension: 720})

	args := cli.buildArgs(Request{InputPath: "in.mov", Width: 641, Height: 361}, "out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "scale=640:360") {
		t.Fatalf("odd source under the ceiling must still be evened: %s", joined)
	}

	unknown := cli.buildArgs(Request{InputPath: "in.mov"}, "out.mp4")
	if strings.Contains(strings.Join(unknown, " "), "scale=") {
		t.Fatalf("unknown geometry must not emit a scale filter: %v", unknown)
	}
}

func TestPassthroughHandsOriginalThrough(t *testing.T) {
	p := NewPassthrough()
	if !p.Passthrough() {
		t.Fatal("expected passthrough")
	}

	var updates []ProgressUpdate
	result, err := p.Transcode(context.Background(), Request{InputPath: "/videos/clip.mp4"}, func(u ProgressUpdate) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if !result.Passthrough || result.OutputPath != "/videos/clip.mp4" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(updates) != 1 || updates[0].Fraction != 1 {
		t.Fatalf("expected single terminal update, got %v", updates)
	}
}

func TestNewFallsBackToPassthrough(t *testing.T) {
	transcoder := New("definitely-not-a-real-encoder-binary", Profile{})
	if !transcoder.Passthrough() {
		t.Fatal("missing binary should select passthrough")
	}
}
