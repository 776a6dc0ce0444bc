package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fetchd/internal/queue"
	"fetchd/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Insert(ctx, "owner-1", "https://example.com/watch?v=abc", "mp4", "best", "clips")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceURL != "https://example.com/watch?v=abc" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.Folder != "clips" {
		t.Fatalf("expected folder preserved, got %q", fetched.Folder)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %#v", fetched)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %#v", job)
	}
}

func TestUpdateRoundTripsTerminalFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "owner-1", "https://example.com/a")

	job.SetCompleted("Example Video", 2048, "owner-1/Example Video.mp4")
	if _, err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if fetched.Title != "Example Video" || fetched.ByteSize != 2048 {
		t.Fatalf("unexpected result fields: %#v", fetched)
	}
	if fetched.OutputRef == "" || fetched.ErrorDetail != "" {
		t.Fatalf("expected output ref without error detail: %#v", fetched)
	}

	job.SetFailed("unsupported url")
	if _, err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	fetched, err = store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed || fetched.ErrorDetail != "unsupported url" {
		t.Fatalf("unexpected failed job: %#v", fetched)
	}
	if fetched.OutputRef != "" {
		t.Fatalf("expected output ref cleared, got %q", fetched.OutputRef)
	}
}

func TestUpdateReportsDeletedRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "owner-1", "https://example.com/a")

	updated, err := store.Update(ctx, job)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated {
		t.Fatal("expected update of existing row to report true")
	}

	if _, err := store.Remove(ctx, job.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	job.SetErrored("late write")
	updated, err = store.Update(ctx, job)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated {
		t.Fatal("expected update of deleted row to report false")
	}
}

func TestListByOwnerOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		testsupport.NewJob(t, store, "owner-a", fmt.Sprintf("https://example.com/a/%d", i))
	}
	testsupport.NewJob(t, store, "owner-b", "https://example.com/b/0")

	jobs, err := store.ListByOwner(ctx, "owner-a")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i-1].ID <= jobs[i].ID {
			t.Fatalf("expected descending IDs, got %d then %d", jobs[i-1].ID, jobs[i].ID)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 jobs total, got %d", len(all))
	}
}

func TestRemoveReportsDeletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "owner-1", "https://example.com/a")

	removed, err := store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to be reported")
	}

	removed, err = store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("expected second removal to report nothing deleted")
	}
}

func TestResetInterruptedMarksNonTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pending := testsupport.NewJob(t, store, "owner-1", "https://example.com/a")
	downloading := testsupport.NewJob(t, store, "owner-1", "https://example.com/b")
	downloading.Status = queue.StatusDownloading
	if _, err := store.Update(ctx, downloading); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	completed := testsupport.NewJob(t, store, "owner-1", "https://example.com/c")
	completed.SetCompleted("Done", 10, "owner-1/Done.mp4")
	if _, err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	affected, err := store.ResetInterrupted(ctx)
	if err != nil {
		t.Fatalf("ResetInterrupted failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 reconciled jobs, got %d", affected)
	}

	for _, id := range []int64{pending.ID, downloading.ID} {
		job, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != queue.StatusError {
			t.Fatalf("expected error status for job %d, got %s", id, job.Status)
		}
		if job.ErrorDetail != queue.InterruptedDetail {
			t.Fatalf("unexpected error detail %q", job.ErrorDetail)
		}
	}

	job, err := store.GetByID(ctx, completed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != queue.StatusCompleted {
		t.Fatalf("terminal job should be untouched, got %s", job.Status)
	}
}

func TestExpiredJobsSkipsActiveAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	old := testsupport.NewJob(t, store, "owner-1", "https://example.com/old")
	old.SetCompleted("Old", 1, "owner-1/Old.mp4")
	if _, err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	active := testsupport.NewJob(t, store, "owner-1", "https://example.com/active")
	active.Status = queue.StatusDownloading
	if _, err := store.Update(ctx, active); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	recent := testsupport.NewJob(t, store, "owner-1", "https://example.com/recent")
	recent.SetFailed("boom")
	if _, err := store.Update(ctx, recent); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cutoff := time.Now().Add(time.Minute)
	expired, err := store.ExpiredJobs(ctx, cutoff)
	if err != nil {
		t.Fatalf("ExpiredJobs failed: %v", err)
	}
	ids := make(map[int64]bool, len(expired))
	for _, job := range expired {
		ids[job.ID] = true
	}
	if !ids[old.ID] || !ids[recent.ID] {
		t.Fatalf("expected terminal jobs in sweep, got %v", ids)
	}
	if ids[active.ID] {
		t.Fatal("active job must never be swept")
	}

	expired, err = store.ExpiredJobs(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ExpiredJobs failed: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no jobs older than cutoff, got %d", len(expired))
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "owner-1", "https://example.com/a")
	testsupport.NewJob(t, store, "owner-1", "https://example.com/b")
	failed := testsupport.NewJob(t, store, "owner-1", "https://example.com/c")
	failed.SetFailed("boom")
	if _, err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 2 || stats[queue.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
