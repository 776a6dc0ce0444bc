package testsupport

import (
	"context"
	"testing"

	"fetchd/internal/config"
	"fetchd/internal/queue"
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

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, ownerID, sourceURL string) *queue.Job {
	t.Helper()

	job, err := store.Insert(context.Background(), ownerID, sourceURL, "mp4", "best", "")
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}
