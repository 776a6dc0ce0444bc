package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a download job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusError       Status = "error"
)

// InterruptedDetail is the error detail set when a non-terminal job is found
// at startup and reconciled to StatusError.
const InterruptedDetail = "interrupted by restart"

// CanceledDetail is the error detail set when an in-flight download is
// canceled by a delete request or daemon shutdown.
const CanceledDetail = "download canceled"

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusCompleted,
	StatusFailed,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusError:     {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Job represents a download request persisted in SQLite.
//
// OwnerID, SourceURL, Format, Quality, and Folder are immutable inputs set at
// creation. Title, ByteSize, and OutputRef are populated on success;
// ErrorDetail on failure. At most one of OutputRef and ErrorDetail is ever
// set.
type Job struct {
	ID          int64
	OwnerID     string
	SourceURL   string
	Format      string
	Quality     string
	Folder      string
	Status      Status
	Title       string
	ByteSize    int64
	OutputRef   string
	ErrorDetail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsTerminal reports whether the job reached a terminal state.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// SetCompleted marks the job as successfully downloaded.
func (j *Job) SetCompleted(title string, byteSize int64, outputRef string) {
	j.Status = StatusCompleted
	j.Title = title
	j.ByteSize = byteSize
	j.OutputRef = outputRef
	j.ErrorDetail = ""
}

// SetFailed marks the job as rejected by the extraction engine.
func (j *Job) SetFailed(detail string) {
	j.Status = StatusFailed
	j.ErrorDetail = detail
	j.OutputRef = ""
}

// SetErrored marks the job as failed due to an infrastructure fault.
func (j *Job) SetErrored(detail string) {
	j.Status = StatusError
	j.ErrorDetail = detail
	j.OutputRef = ""
}
