package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"fetchd/internal/api"
	"fetchd/internal/daemon"
	"fetchd/internal/logging"
	"fetchd/internal/queue"
	"fetchd/internal/testsupport"
)

func startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestStartServesAPIAndEnforcesSingleInstance(t *testing.T) {
	d := startDaemon(t)

	resp, err := http.Get("http://" + d.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestStartReconcilesInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stuck := testsupport.NewJob(t, store, "owner-a", "https://example.com/stuck")
	stuck.Status = queue.StatusDownloading
	if _, err := store.Update(ctx, stuck); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	job, err := store.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != queue.StatusError || job.ErrorDetail != queue.InterruptedDetail {
		t.Fatalf("expected interrupted reconciliation, got %#v", job)
	}

	// The reconciled job must be visible through the API immediately.
	resp, err := http.Get("http://" + d.Addr() + "/api/status?user_id=owner-a")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var views api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 job in registry-backed view, got %d", len(views))
	}
}

func TestSubmissionFlowsThroughDaemon(t *testing.T) {
	d := startDaemon(t)

	payload, err := json.Marshal(api.AddRequest{
		URL: "https://example.com/v", Format: "mp4", Quality: "best", UserID: "owner-a",
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post("http://"+d.Addr()+"/api/add", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST add: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var view api.JobView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if view.ID == 0 {
		t.Fatalf("expected assigned job id, got %#v", view)
	}
}
