package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"fetchd/internal/fileutil"
	"fetchd/internal/logging"
	"fetchd/internal/queue"
)

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if missing := firstMissing(map[string]string{
		"url":     req.URL,
		"format":  req.Format,
		"quality": req.Quality,
		"user_id": req.UserID,
	}); missing != "" {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("missing required field %q", missing))
		return
	}

	job, err := s.store.Insert(r.Context(), req.UserID, req.URL, req.Format, req.Quality, req.Folder)
	if err != nil {
		s.logger.Error("insert job", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to record job")
		return
	}
	s.registry.Put(job)

	// A saturated queue is recorded on the job rather than surfaced as a
	// transport failure; the submission itself already succeeded.
	if err := s.runner.Enqueue(job); err != nil {
		job.SetErrored(err.Error())
		if _, updateErr := s.store.Update(r.Context(), job); updateErr != nil {
			s.logger.Error("record enqueue failure", logging.Error(updateErr))
		}
		s.registry.Put(job)
		s.logger.Warn("job not enqueued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
	}

	s.hub.Publish(job.OwnerID)
	s.logger.Info("job submitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, job.OwnerID),
		logging.String("url", job.SourceURL))
	s.writeJSON(w, http.StatusCreated, FromJob(*job, s.views))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var jobs []queue.Job
	if owner := strings.TrimSpace(r.URL.Query().Get("user_id")); owner != "" {
		jobs = s.registry.SnapshotOwner(owner)
	} else {
		jobs = s.registry.SnapshotAll()
	}
	s.writeJSON(w, http.StatusOK, FromJobs(jobs, s.views))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == 0 || strings.TrimSpace(req.UserID) == "" {
		s.writeError(w, http.StatusBadRequest, "missing required field")
		return
	}

	job, err := s.store.GetByID(r.Context(), req.ID)
	if err != nil {
		s.logger.Error("load job for delete", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil || job.OwnerID != req.UserID {
		s.writeJSON(w, http.StatusOK, DeleteResponse{
			Status: "error",
			Error:  "job not found or not owned by user",
		})
		return
	}

	logger := s.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, job.OwnerID))

	if s.runner.Cancel(job.ID) {
		logger.Info("canceled in-flight download")
	}
	if job.OutputRef != "" {
		path := filepath.Join(s.cfg.Paths.DownloadDir, filepath.FromSlash(job.OutputRef))
		if _, err := fileutil.RemoveIfExists(path); err != nil {
			logger.Warn("artifact delete failed", logging.String("path", path), logging.Error(err))
		}
	}
	if _, err := s.store.Remove(r.Context(), job.ID); err != nil {
		logger.Error("remove job record", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}
	s.registry.Remove(job.ID)
	s.hub.Publish(job.OwnerID)

	logger.Info("job deleted")
	s.writeJSON(w, http.StatusOK, DeleteResponse{Status: "success"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	owner := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if owner == "" {
		s.writeError(w, http.StatusBadRequest, "missing required field \"user_id\"")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.hub.Subscribe(owner)
	defer s.hub.Unsubscribe(sub)
	s.logger.Debug("event stream opened", logging.String(logging.FieldOwner, owner))

	// Initial snapshot so a reconnecting client misses nothing.
	if !s.writeEvent(w, flusher, s.registry.SnapshotOwner(owner)) {
		return
	}

	clientGone := r.Context().Done()
	for {
		select {
		case <-clientGone:
			s.logger.Debug("event stream closed", logging.String(logging.FieldOwner, owner))
			return
		case snapshot, open := <-sub.C():
			if !open {
				return
			}
			jobs := make([]queue.Job, 0, len(snapshot))
			for _, job := range snapshot {
				jobs = append(jobs, job)
			}
			if !s.writeEvent(w, flusher, jobs) {
				return
			}
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, jobs []queue.Job) bool {
	payload, err := json.Marshal(FromJobs(jobs, s.views))
	if err != nil {
		s.logger.Error("encode event snapshot", logging.Error(err))
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func firstMissing(fields map[string]string) string {
	for _, name := range []string{"url", "format", "quality", "user_id"} {
		if value, ok := fields[name]; ok && strings.TrimSpace(value) == "" {
			return name
		}
	}
	return ""
}
