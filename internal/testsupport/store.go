package testsupport

import (
	"context"
	"testing"

	"recipecast/internal/config"
	"recipecast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSubmission creates a pending submission for tests using the provided store.
func NewSubmission(t testing.TB, store *queue.Store, sourcePath, title string) *queue.Submission {
	t.Helper()

	sub, err := store.NewSubmission(context.Background(), sourcePath, title)
	if err != nil {
		t.Fatalf("store.NewSubmission: %v", err)
	}
	return sub
}
