package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/mattn/go-isatty"

	"recipecast/internal/publish"
)

var phaseLabels = map[publish.Phase]string{
	publish.PhaseCompressing: "Compressing",
	publish.PhaseUploading:   "Uploading",
	publish.PhaseSubmitting:  "Submitting",
}

// progressRenderer turns pipeline progress events into terminal output. On a
// TTY it renders live trackers, otherwise it falls back to plain phase lines.
type progressRenderer struct {
	out io.Writer
	tty bool

	mu       sync.Mutex
	closed   bool
	writer   progress.Writer
	trackers map[publish.Phase]*progress.Tracker
	last     map[publish.Phase]float64
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	r := &progressRenderer{
		out:      out,
		trackers: make(map[publish.Phase]*progress.Tracker),
		last:     make(map[publish.Phase]float64),
	}
	if file, ok := out.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		r.tty = true
		pw := progress.NewWriter()
		pw.SetOutputWriter(out)
		pw.SetUpdateFrequency(100 * time.Millisecond)
		pw.SetTrackerLength(30)
		pw.Style().Visibility.ETA = false
		pw.Style().Visibility.Time = false
		r.writer = pw
		go pw.Render()
	}
	return r
}

// Handle consumes one progress event. Safe for concurrent use.
func (r *progressRenderer) Handle(event publish.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if r.tty {
		r.handleTTY(event)
		return
	}
	r.handlePlain(event)
}

func (r *progressRenderer) handleTTY(event publish.ProgressEvent) {
	tracker, ok := r.trackers[event.Phase]
	if !ok {
		tracker = &progress.Tracker{
			Message: phaseLabels[event.Phase],
			Total:   100,
		}
		if event.Phase == publish.PhaseUploading && event.TotalBytes > 0 {
			tracker.Total = event.TotalBytes
			tracker.Units = progress.UnitsBytes
		}
		r.trackers[event.Phase] = tracker
		r.writer.AppendTracker(tracker)
	}

	if event.Phase == publish.PhaseUploading && event.TotalBytes > 0 {
		tracker.SetValue(event.BytesSent)
	} else {
		tracker.SetValue(int64(event.Fraction * 100))
	}
	if event.Fraction >= 1 {
		tracker.MarkAsDone()
	}
}

func (r *progressRenderer) handlePlain(event publish.ProgressEvent) {
	// Keep non-interactive output quiet: one line per phase start, one per
	// phase completion.
	prev, seen := r.last[event.Phase]
	r.last[event.Phase] = event.Fraction
	switch {
	case !seen:
		fmt.Fprintf(r.out, "%s...\n", phaseLabels[event.Phase])
	case event.Fraction >= 1 && prev < 1:
		fmt.Fprintf(r.out, "%s done\n", phaseLabels[event.Phase])
	}
}

// Close stops the live renderer. Subsequent calls are no-ops.
func (r *progressRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.writer != nil {
		for _, tracker := range r.trackers {
			if !tracker.IsDone() {
				tracker.MarkAsErrored()
			}
		}
		r.writer.Stop()
		for r.writer.IsRenderInProgress() {
			time.Sleep(10 * time.Millisecond)
		}
	}
}
