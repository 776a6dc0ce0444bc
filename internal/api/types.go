package api

import (
	"strconv"
	"strings"
	"time"

	"fetchd/internal/queue"
)

// JobView is the wire representation of a job.
type JobView struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Quality   string `json:"quality"`
	Folder    string `json:"folder,omitempty"`
	Status    string `json:"status"`
	Title     string `json:"title,omitempty"`
	Size      int64  `json:"size,omitempty"`
	File      string `json:"file,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AddRequest is the POST /api/add payload.
type AddRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
	Folder  string `json:"folder"`
	UserID  string `json:"user_id"`
}

// DeleteRequest is the POST /api/delete payload.
type DeleteRequest struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
}

// DeleteResponse reports the outcome of a delete request.
type DeleteResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse maps job identifiers to their current view.
type StatusResponse map[string]JobView

// ViewOptions shapes artifact URLs in job views.
type ViewOptions struct {
	BaseURL      string
	PublicPrefix string
}

// FromJob converts a job record into its wire representation.
func FromJob(job queue.Job, opts ViewOptions) JobView {
	view := JobView{
		ID:        job.ID,
		UserID:    job.OwnerID,
		URL:       job.SourceURL,
		Format:    job.Format,
		Quality:   job.Quality,
		Folder:    job.Folder,
		Status:    string(job.Status),
		Title:     job.Title,
		Size:      job.ByteSize,
		Error:     job.ErrorDetail,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if job.OutputRef != "" {
		view.File = artifactURL(job.OutputRef, opts)
	}
	return view
}

// FromJobs builds the id-keyed status mapping. JSON object keys must be
// strings, so the ids are formatted.
func FromJobs(jobs []queue.Job, opts ViewOptions) StatusResponse {
	views := make(StatusResponse, len(jobs))
	for _, job := range jobs {
		views[strconv.FormatInt(job.ID, 10)] = FromJob(job, opts)
	}
	return views
}

func artifactURL(ref string, opts ViewOptions) string {
	prefix := strings.TrimSuffix(opts.PublicPrefix, "/")
	path := prefix + "/" + strings.TrimPrefix(ref, "/")
	if opts.BaseURL == "" {
		return path
	}
	return strings.TrimSuffix(opts.BaseURL, "/") + path
}
