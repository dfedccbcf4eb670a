package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"recipecast/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSubmissionDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewSubmission(ctx, "/videos/pasta carbonara.mp4", "")
	if err != nil {
		t.Fatalf("new submission: %v", err)
	}
	if item.Status != StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.Title != "pasta carbonara" {
		t.Fatalf("expected inferred title, got %q", item.Title)
	}
	if item.CorrelationID == "" {
		t.Fatal("expected correlation id")
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewSubmission(ctx, "/videos/clip.mp4", "Dinner")
	if err != nil {
		t.Fatal(err)
	}

	item.Status = StatusUploading
	item.StagedFile = "/staging/clip-720p.mp4"
	item.VideoURL = "https://cdn.example.com/v/abc"
	item.OriginalSizeBytes = 90_000_000
	item.FinalSizeBytes = 31_000_000
	item.Passthrough = false
	item.SetProgress("Uploading", "Sending video", 42.5)
	item.ProgressBytesSent = 13_000_000
	item.ProgressTotalBytes = 31_000_000
	now := time.Now().UTC()
	item.LastHeartbeat = &now

	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusUploading {
		t.Fatalf("expected uploading, got %s", got.Status)
	}
	if got.StagedFile != item.StagedFile || got.VideoURL != item.VideoURL {
		t.Fatalf("staged/url not persisted: %+v", got)
	}
	if got.OriginalSizeBytes != 90_000_000 || got.FinalSizeBytes != 31_000_000 {
		t.Fatalf("sizes not persisted: %+v", got)
	}
	if got.ProgressPercent != 42.5 || got.ProgressBytesSent != 13_000_000 {
		t.Fatalf("progress not persisted: %+v", got)
	}
	if got.LastHeartbeat == nil {
		t.Fatal("expected heartbeat")
	}
}

func TestNextForStatusesOrdersByCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.NewSubmission(ctx, "/videos/a.mp4", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.NewSubmission(ctx, "/videos/b.mp4", ""); err != nil {
		t.Fatal(err)
	}

	next, err := store.NextForStatuses(ctx, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending submission, got %+v", next)
	}

	none, err := store.NextForStatuses(ctx, StatusUploading)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("expected nil, got %+v", none)
	}
}

func TestRetryFailedSkipsRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	failed, err := store.NewSubmission(ctx, "/videos/a.mp4", "")
	if err != nil {
		t.Fatal(err)
	}
	failed.SetFailed("network down")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatal(err)
	}

	rejected, err := store.NewSubmission(ctx, "/videos/b.mp4", "")
	if err != nil {
		t.Fatal(err)
	}
	rejected.SetRejected("file exceeds ceiling")
	if err := store.Update(ctx, rejected); err != nil {
		t.Fatal(err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried, got %d", count)
	}

	got, err := store.GetByID(ctx, rejected.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("rejected submission should stay rejected, got %s", got.Status)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewSubmission(ctx, "/videos/a.mp4", "")
	if err != nil {
		t.Fatal(err)
	}
	item.Status = StatusTranscoding
	if err := store.Update(ctx, item); err != nil {
		t.Fatal(err)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reset, got %d", count)
	}
	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewSubmission(ctx, "/videos/a.mp4", "")
	if err != nil {
		t.Fatal(err)
	}
	item.Status = StatusUploading
	stale := time.Now().UTC().Add(-time.Hour)
	item.LastHeartbeat = &stale
	if err := store.Update(ctx, item); err != nil {
		t.Fatal(err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", count)
	}
}

func TestHealthAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	published, err := store.NewSubmission(ctx, "/videos/a.mp4", "")
	if err != nil {
		t.Fatal(err)
	}
	published.Status = StatusPublished
	if err := store.Update(ctx, published); err != nil {
		t.Fatal(err)
	}
	if _, err := store.NewSubmission(ctx, "/videos/b.mp4", ""); err != nil {
		t.Fatal(err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if health.Total != 2 || health.Published != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health %+v", health)
	}

	removed, err := store.ClearPublished(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.TableExists || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected db health %+v", dbHealth)
	}
	if dbHealth.TotalItems != 1 {
		t.Fatalf("expected 1 remaining, got %d", dbHealth.TotalItems)
	}
}

func TestFailureStatusMapping(t *testing.T) {
	rejection := services.Wrap(services.ErrRejected, "sizeguard", "check", "over ceiling", nil)
	if FailureStatus(rejection) != StatusRejected {
		t.Fatal("rejection marker should map to rejected")
	}
	if FailureStatus(errors.New("boom")) != StatusFailed {
		t.Fatal("plain error should map to failed")
	}
	transient := services.Wrap(services.ErrTransient, "upload", "post", "timeout", nil)
	if FailureStatus(transient) != StatusFailed {
		t.Fatal("transient error should map to failed")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("  Uploading "); !ok || status != StatusUploading {
		t.Fatalf("unexpected parse result %v %v", status, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Fatal("expected parse failure")
	}
	if !IsProcessingStatus(StatusTranscoding) || IsProcessingStatus(StatusPublished) {
		t.Fatal("processing classification wrong")
	}
	if !IsTerminalStatus(StatusRejected) || IsTerminalStatus(StatusPending) {
		t.Fatal("terminal classification wrong")
	}
}
