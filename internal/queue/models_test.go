package queue

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"pending", StatusPending, true},
		{"  Downloading ", StatusDownloading, true},
		{"COMPLETED", StatusCompleted, true},
		{"failed", StatusFailed, true},
		{"error", StatusError, true},
		{"", "", false},
		{"paused", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.input)
		if ok != tc.ok {
			t.Fatalf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseStatus(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:     false,
		StatusDownloading: false,
		StatusCompleted:   true,
		StatusFailed:      true,
		StatusError:       true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestResultSettersAreExclusive(t *testing.T) {
	job := &Job{Status: StatusDownloading}

	job.SetCompleted("Title", 128, "owner/Title.mp4")
	if job.ErrorDetail != "" {
		t.Fatalf("completed job must not carry error detail, got %q", job.ErrorDetail)
	}

	job.SetFailed("engine rejected url")
	if job.OutputRef != "" {
		t.Fatalf("failed job must not carry output ref, got %q", job.OutputRef)
	}
	if job.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}

	job.SetErrored("mkdir denied")
	if job.Status != StatusError || job.ErrorDetail != "mkdir denied" {
		t.Fatalf("unexpected errored job: %#v", job)
	}
}
