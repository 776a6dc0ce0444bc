package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"fetchd/internal/config"
	"fetchd/internal/engine"
	"fetchd/internal/fileutil"
	"fetchd/internal/logging"
	"fetchd/internal/notifications"
	"fetchd/internal/queue"
	"fetchd/internal/registry"
	"fetchd/internal/textutil"
)

// ErrQueueFull is returned by Enqueue when the pending queue is saturated.
// The submission path must never block on worker availability.
var ErrQueueFull = errors.New("download queue is full")

// ErrNotRunning is returned by Enqueue before Start or after Stop.
var ErrNotRunning = errors.New("executor is not running")

// Publisher receives owner identifiers whose job view changed.
type Publisher interface {
	Publish(ownerID string)
}

// Executor runs job downloads on a bounded worker pool. Each job is enqueued
// exactly once at submission, so no two workers ever own the same job.
type Executor struct {
	cfg      *config.Config
	store    *queue.Store
	registry *registry.Registry
	resolver engine.Resolver
	hub      Publisher
	notifier notifications.Service
	logger   *slog.Logger

	pending chan *queue.Job

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	active  map[int64]*activeDownload
	wg      sync.WaitGroup
}

// activeDownload tracks an in-flight job: its cancel handle and a channel
// closed once the worker has finished writing the terminal state.
type activeDownload struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an executor. The hub and notifier may be nil.
func New(
	cfg *config.Config,
	store *queue.Store,
	reg *registry.Registry,
	resolver engine.Resolver,
	hub Publisher,
	notifier notifications.Service,
	logger *slog.Logger,
) *Executor {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Executor{
		cfg:      cfg,
		store:    store,
		registry: reg,
		resolver: resolver,
		hub:      hub,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "executor"),
		pending:  make(chan *queue.Job, cfg.Downloads.QueueCapacity),
		active:   make(map[int64]*activeDownload),
	}
}

// Start launches the worker pool. It returns immediately.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("executor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	workers := e.cfg.Downloads.Workers
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(runCtx, i)
	}
	e.logger.Info("worker pool started",
		logging.Int("workers", workers),
		logging.Int("queue_capacity", cap(e.pending)))
	return nil
}

// Stop cancels in-flight downloads and waits for workers to exit.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.logger.Info("worker pool stopped")
}

// Enqueue hands a pending job to the worker pool without blocking. The
// caller is responsible for having persisted the job first.
func (e *Executor) Enqueue(job *queue.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case e.pending <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel aborts the in-flight download for a job and waits until its worker
// has finished writing the terminal state, so a caller deleting the job
// afterwards cannot race the worker's final persist. It reports whether a
// download was actually running. Pending jobs that have not been claimed yet
// cannot be canceled here; the delete path removes their record instead and
// the worker skips rows that no longer exist.
func (e *Executor) Cancel(id int64) bool {
	e.mu.Lock()
	entry, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	entry.cancel()
	<-entry.done
	return true
}

func (e *Executor) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	logger := e.logger.With(logging.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.pending:
			e.process(ctx, logger, job)
		}
	}
}

func (e *Executor) process(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	requestID := uuid.NewString()
	logger = logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, job.OwnerID),
		logging.String(logging.FieldRequestID, requestID))

	// The job row may have been deleted while waiting in the queue.
	current, err := e.store.GetByID(ctx, job.ID)
	if err != nil {
		logger.Error("load job before claim", logging.Error(err))
		return
	}
	if current == nil {
		logger.Debug("job removed before claim")
		return
	}
	if current.Status != queue.StatusPending {
		logger.Warn("job no longer pending", logging.String("status", string(current.Status)))
		return
	}
	job = current

	// Persist the downloading transition before touching the engine so a
	// crash mid-download leaves a durable record.
	job.Status = queue.StatusDownloading
	updated, err := e.store.Update(ctx, job)
	if err != nil {
		logger.Error("persist downloading transition", logging.Error(err))
		return
	}
	if !updated {
		logger.Debug("job removed before claim")
		return
	}
	e.registry.Put(job)
	e.publish(job.OwnerID)
	logger.Info("download started", logging.String("url", job.SourceURL))

	jobCtx, cancel := context.WithCancel(ctx)
	entry := &activeDownload{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.active[job.ID] = entry
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.active, job.ID)
		e.mu.Unlock()
		close(entry.done)
	}()

	destDir := e.destinationDir(job)
	if err := fileutil.EnsureDir(destDir); err != nil {
		e.finishError(ctx, logger, job, fmt.Sprintf("create output directory: %v", err))
		return
	}

	result, err := e.resolver.Resolve(jobCtx, engine.Request{
		SourceURL: job.SourceURL,
		Format:    job.Format,
		Quality:   job.Quality,
		DestDir:   destDir,
	})
	switch {
	case err == nil:
		e.finishCompleted(ctx, logger, job, result)
	case errors.Is(err, context.Canceled) && jobCtx.Err() != nil:
		e.finishError(ctx, logger, job, queue.CanceledDetail)
	case errors.Is(err, engine.ErrRejected):
		e.finishFailed(ctx, logger, job, err.Error())
	default:
		e.finishError(ctx, logger, job, err.Error())
	}
}

func (e *Executor) finishCompleted(ctx context.Context, logger *slog.Logger, job *queue.Job, result *engine.Result) {
	outputRef := e.outputRef(result.OutputPath)
	job.SetCompleted(result.Title, result.ByteSize, outputRef)
	e.persistTerminal(ctx, logger, job)
	logger.Info("download completed",
		logging.String("title", result.Title),
		logging.Int64("bytes", result.ByteSize),
		logging.String("output_ref", outputRef))

	if err := e.notifier.NotifyJobCompleted(ctx, job.Title, job.ByteSize); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (e *Executor) finishFailed(ctx context.Context, logger *slog.Logger, job *queue.Job, detail string) {
	job.SetFailed(detail)
	e.persistTerminal(ctx, logger, job)
	logger.Warn("download failed", logging.String("detail", detail))

	if err := e.notifier.NotifyJobFailed(ctx, job.SourceURL, detail); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

func (e *Executor) finishError(ctx context.Context, logger *slog.Logger, job *queue.Job, detail string) {
	job.SetErrored(detail)
	e.persistTerminal(ctx, logger, job)
	logger.Error("download errored", logging.String("detail", detail))

	if err := e.notifier.NotifyJobFailed(ctx, job.SourceURL, detail); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// persistTerminal writes the terminal row even when the surrounding context
// is shutting down, so in-flight work is never lost as phantom downloading.
// A row that vanished means the job was deleted mid-flight: the registry must
// not learn about it again, and any artifact the engine produced anyway is
// orphaned and removed here.
func (e *Executor) persistTerminal(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	updated, err := e.store.Update(ctx, job)
	if err != nil {
		logger.Error("persist terminal transition", logging.Error(err))
		return
	}
	if !updated {
		logger.Debug("job deleted before terminal write")
		e.registry.Remove(job.ID)
		if job.OutputRef != "" {
			path := job.OutputRef
			if !filepath.IsAbs(path) {
				path = filepath.Join(e.cfg.Paths.DownloadDir, filepath.FromSlash(job.OutputRef))
			}
			if _, err := fileutil.RemoveIfExists(path); err != nil {
				logger.Warn("orphaned artifact delete failed", logging.String("path", path), logging.Error(err))
			}
		}
		return
	}
	e.registry.Put(job)
	e.publish(job.OwnerID)
}

func (e *Executor) publish(ownerID string) {
	if e.hub != nil {
		e.hub.Publish(ownerID)
	}
}

func (e *Executor) destinationDir(job *queue.Job) string {
	dest := filepath.Join(e.cfg.Paths.DownloadDir, textutil.SanitizeFolder(job.OwnerID))
	if folder := textutil.SanitizeFolder(job.Folder); folder != "" {
		dest = filepath.Join(dest, folder)
	}
	return dest
}

// outputRef converts the engine's absolute output path into a reference
// relative to the download root, suitable for serving under the public
// prefix. Falls back to the absolute path when outside the root.
func (e *Executor) outputRef(outputPath string) string {
	rel, err := filepath.Rel(e.cfg.Paths.DownloadDir, outputPath)
	if err != nil || rel == "." || rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return outputPath
	}
	return filepath.ToSlash(rel)
}
