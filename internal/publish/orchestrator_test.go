package publish

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"recipecast/internal/config"
	"recipecast/internal/logging"
	"recipecast/internal/media"
	"recipecast/internal/queue"
	"recipecast/internal/recipes"
	"recipecast/internal/services"
	"recipecast/internal/testsupport"
	"recipecast/internal/transcode"
	"recipecast/internal/upload"
)

const testCeiling = 1000

type fakeTranscoder struct {
	mu          sync.Mutex
	passthrough bool
	outputBytes int
	failWith    error
	block       bool
	calls       int
	acquired    int
	released    int
}

func (f *fakeTranscoder) Passthrough() bool { return f.passthrough }

func (f *fakeTranscoder) Transcode(ctx context.Context, req transcode.Request, progress func(transcode.ProgressUpdate)) (transcode.Result, error) {
	f.mu.Lock()
	f.calls++
	f.acquired++
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}()

	if f.block {
		<-ctx.Done()
		return transcode.Result{}, ctx.Err()
	}
	if f.failWith != nil {
		return transcode.Result{}, f.failWith
	}

	out := filepath.Join(req.OutputDir, "staged.mp4")
	if err := os.WriteFile(out, bytes.Repeat([]byte("x"), f.outputBytes), 0o644); err != nil {
		return transcode.Result{}, err
	}
	if progress != nil {
		progress(transcode.ProgressUpdate{Fraction: 0.5, Message: "Compressing video"})
		progress(transcode.ProgressUpdate{Fraction: 1, Message: "Compression complete"})
	}
	return transcode.Result{OutputPath: out}, nil
}

type fakeUploader struct {
	url      string
	failWith error
	calls    int
}

func (f *fakeUploader) UploadVideo(ctx context.Context, path string, progress func(upload.ProgressUpdate)) (string, error) {
	f.calls++
	if f.failWith != nil {
		return "", f.failWith
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(upload.ProgressUpdate{BytesSent: info.Size() / 2, TotalBytes: info.Size(), Fraction: 0.5})
		progress(upload.ProgressUpdate{BytesSent: info.Size(), TotalBytes: info.Size(), Fraction: 1})
	}
	return f.url, nil
}

type fakeSubmitter struct {
	failWith error
	calls    int
	draft    recipes.Draft
}

func (f *fakeSubmitter) Submit(ctx context.Context, draft recipes.Draft) error {
	f.calls++
	f.draft = draft
	return f.failWith
}

type harness struct {
	cfg        *config.Config
	store      *queue.Store
	transcoder *fakeTranscoder
	uploader   *fakeUploader
	submitter  *fakeSubmitter
	events     []ProgressEvent
	outcomes   []Outcome
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSizeCeiling(testCeiling))
	store := testsupport.MustOpenStore(t, cfg)

	return &harness{
		cfg:        cfg,
		store:      store,
		transcoder: &fakeTranscoder{outputBytes: 300},
		uploader:   &fakeUploader{url: "https://cdn.example.com/v/abc"},
		submitter:  &fakeSubmitter{},
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	orch, err := New(Deps{
		Config:     h.cfg,
		Store:      h.store,
		Logger:     logging.NewNop(),
		Transcoder: h.transcoder,
		Uploader:   h.uploader,
		Submitter:  h.submitter,
		Probe: func(ctx context.Context, binary, path string) (media.Asset, error) {
			info, err := os.Stat(path)
			if err != nil {
				return media.Asset{}, services.Wrap(services.ErrNotFound, "media", "stat", path, err)
			}
			return media.Asset{
				Path:            path,
				SizeBytes:       info.Size(),
				Width:           1920,
				Height:          1080,
				DurationSeconds: 10,
			}, nil
		},
		OnProgress: func(e ProgressEvent) { h.events = append(h.events, e) },
		OnComplete: func(o Outcome) { h.outcomes = append(h.outcomes, o) },
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func (h *harness) newSubmission(t *testing.T, sourceBytes int) *queue.Submission {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte("v"), sourceBytes), 0o644); err != nil {
		t.Fatal(err)
	}
	sub, err := h.store.NewSubmission(context.Background(), path, "Pasta Carbonara")
	if err != nil {
		t.Fatal(err)
	}
	draft := recipes.NewDraft("Pasta Carbonara", "eggs\nguanciale", "cook", "italian", "")
	raw, err := draft.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	sub.RecipeDraftJSON = raw
	if err := h.store.Update(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

func (h *harness) reload(t *testing.T, id int64) *queue.Submission {
	t.Helper()
	sub, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestRunPublishesWithinCeiling(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	h.transcoder.outputBytes = 300

	if err := h.orchestrator(t).Run(context.Background(), sub); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := h.reload(t, sub.ID)
	if got.Status != queue.StatusPublished {
		t.Fatalf("expected published, got %s", got.Status)
	}
	if got.VideoURL != "https://cdn.example.com/v/abc" {
		t.Fatalf("unexpected url %q", got.VideoURL)
	}
	if got.OriginalSizeBytes != 600 || got.FinalSizeBytes != 300 {
		t.Fatalf("unexpected sizes %d/%d", got.OriginalSizeBytes, got.FinalSizeBytes)
	}
	if h.submitter.draft.VideoURL != got.VideoURL {
		t.Fatalf("draft missing video url: %+v", h.submitter.draft)
	}

	if len(h.outcomes) != 1 {
		t.Fatalf("expected one completion, got %d", len(h.outcomes))
	}
	if h.outcomes[0].Status != string(queue.StatusPublished) || h.outcomes[0].Err != nil {
		t.Fatalf("unexpected outcome %+v", h.outcomes[0])
	}
}

func TestRunProgressIsMonotonicWithSingleTerminalPerPhase(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)

	if err := h.orchestrator(t).Run(context.Background(), sub); err != nil {
		t.Fatalf("run: %v", err)
	}

	seenPhases := []Phase{}
	last := map[Phase]float64{}
	terminals := map[Phase]int{}
	for _, e := range h.events {
		if prev, ok := last[e.Phase]; ok {
			if e.Fraction <= prev {
				t.Fatalf("phase %s regressed: %v", e.Phase, h.events)
			}
		} else {
			seenPhases = append(seenPhases, e.Phase)
		}
		last[e.Phase] = e.Fraction
		if e.Fraction == 1 {
			terminals[e.Phase]++
		}
	}
	wantOrder := []Phase{PhaseCompressing, PhaseUploading, PhaseSubmitting}
	if len(seenPhases) != len(wantOrder) {
		t.Fatalf("expected phases %v, saw %v", wantOrder, seenPhases)
	}
	for i := range wantOrder {
		if seenPhases[i] != wantOrder[i] {
			t.Fatalf("phases out of order: %v", seenPhases)
		}
	}
	for _, phase := range wantOrder {
		if terminals[phase] != 1 {
			t.Fatalf("phase %s should end with exactly one 1.0, got %d", phase, terminals[phase])
		}
	}
}

func TestRunRejectsOversizedOriginalBeforeTranscoding(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 2000)

	err := h.orchestrator(t).Run(context.Background(), sub)
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if h.transcoder.calls != 0 {
		t.Fatal("transcoder must not run for oversized originals")
	}

	got := h.reload(t, sub.ID)
	if got.Status != queue.StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "original") {
		t.Fatalf("rejection should name the phase: %q", got.ErrorMessage)
	}
}

func TestRunRejectsOversizedTranscodeOutput(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	h.transcoder.outputBytes = 1500

	err := h.orchestrator(t).Run(context.Background(), sub)
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if h.uploader.calls != 0 {
		t.Fatal("uploader must not run when output exceeds the ceiling")
	}

	got := h.reload(t, sub.ID)
	if got.Status != queue.StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "transcoded") {
		t.Fatalf("rejection should name the phase: %q", got.ErrorMessage)
	}
}

func TestRunMetadataFailureIsDistinctPartialSuccess(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	h.submitter.failWith = services.Wrap(services.ErrTransient, "recipes", "post", "server returned 500", nil)

	err := h.orchestrator(t).Run(context.Background(), sub)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "video uploaded") {
		t.Fatalf("metadata failure should surface partial success: %v", err)
	}

	got := h.reload(t, sub.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.VideoURL == "" {
		t.Fatal("video url must survive metadata failure")
	}
	if len(h.outcomes) != 1 || h.outcomes[0].VideoURL == "" {
		t.Fatalf("outcome should carry the uploaded url: %+v", h.outcomes)
	}
}

func TestRunUploadFailureIsFailed(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	h.uploader.failWith = services.Wrap(services.ErrTransient, "upload", "post", "connection reset", nil)

	err := h.orchestrator(t).Run(context.Background(), sub)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if h.submitter.calls != 0 {
		t.Fatal("submitter must not run after upload failure")
	}
	if h.reload(t, sub.ID).Status != queue.StatusFailed {
		t.Fatal("expected failed status")
	}
}

func TestRunRejectsMissingAsset(t *testing.T) {
	h := newHarness(t)
	sub, err := h.store.NewSubmission(context.Background(), "placeholder", "")
	if err != nil {
		t.Fatal(err)
	}
	sub.SourcePath = "   "
	if err := h.store.Update(context.Background(), sub); err != nil {
		t.Fatal(err)
	}

	runErr := h.orchestrator(t).Run(context.Background(), sub)
	if !errors.Is(runErr, services.ErrRejected) {
		t.Fatalf("expected rejection, got %v", runErr)
	}
	got := h.reload(t, sub.ID)
	if got.Status != queue.StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if h.transcoder.calls != 0 || h.uploader.calls != 0 {
		t.Fatal("no stage may run without an asset")
	}
}

func TestRunPassthroughSkipsCompressingAndRechecksSize(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	h.transcoder.passthrough = true

	if err := h.orchestrator(t).Run(context.Background(), sub); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := h.reload(t, sub.ID)
	if !got.Passthrough {
		t.Fatal("expected passthrough flag")
	}
	if got.StagedFile != got.SourcePath {
		t.Fatalf("passthrough must hand the original through: %q vs %q", got.StagedFile, got.SourcePath)
	}
	if got.FinalSizeBytes != 600 {
		t.Fatalf("size guard must re-measure in passthrough mode, got %d", got.FinalSizeBytes)
	}
	for _, e := range h.events {
		if e.Phase == PhaseCompressing {
			t.Fatalf("passthrough must not emit compressing events: %+v", e)
		}
	}
}

func TestRunAbortReleasesEncoder(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	h.transcoder.block = true

	orch := h.orchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- orch.Run(ctx, sub)
	}()

	deadline := time.After(5 * time.Second)
	for {
		h.transcoder.mu.Lock()
		started := h.transcoder.acquired > 0
		h.transcoder.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("transcoder never started")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
	if runErr == nil {
		t.Fatal("expected cancellation error")
	}

	h.transcoder.mu.Lock()
	acquired, released := h.transcoder.acquired, h.transcoder.released
	h.transcoder.mu.Unlock()
	if acquired != released {
		t.Fatalf("encoder handles leaked: acquired %d released %d", acquired, released)
	}

	got := h.reload(t, sub.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("aborted run should persist failed, got %s", got.Status)
	}
	if len(h.outcomes) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(h.outcomes))
	}
}

func TestRunRefusesReuse(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)

	orch := h.orchestrator(t)
	if err := orch.Run(context.Background(), sub); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := h.newSubmission(t, 600)
	if err := orch.Run(context.Background(), second); err == nil {
		t.Fatal("second run on the same instance must fail")
	}
}

func TestRunRefusesTerminalSubmission(t *testing.T) {
	h := newHarness(t)
	sub := h.newSubmission(t, 600)
	sub.Status = queue.StatusPublished
	if err := h.store.Update(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	if err := h.orchestrator(t).Run(context.Background(), sub); err == nil {
		t.Fatal("terminal submission must not run again")
	}
}
