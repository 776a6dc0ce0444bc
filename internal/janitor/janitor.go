package janitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/fileutil"
	"fetchd/internal/logging"
	"fetchd/internal/queue"
	"fetchd/internal/registry"
)

// Janitor retires terminal jobs and their artifacts once they age past the
// retention window.
type Janitor struct {
	cfg      *config.Config
	store    *queue.Store
	registry *registry.Registry
	logger   *slog.Logger

	maxAge   time.Duration
	interval time.Duration
}

// New constructs a janitor from the retention configuration.
func New(cfg *config.Config, store *queue.Store, reg *registry.Registry, logger *slog.Logger) *Janitor {
	return &Janitor{
		cfg:      cfg,
		store:    store,
		registry: reg,
		logger:   logging.NewComponentLogger(logger, "janitor"),
		maxAge:   time.Duration(cfg.Retention.MaxAgeHours) * time.Hour,
		interval: time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute,
	}
}

// Run sweeps on a fixed interval until the context is canceled. Sweep
// failures are logged and the loop continues; a partially-completed sweep is
// safe to resume because each deletion is independently idempotent.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("retention sweep scheduled",
		logging.Duration("interval", j.interval),
		logging.Duration("max_age", j.maxAge))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("retention sweep failed", logging.Error(err))
			}
		}
	}
}

// Sweep performs a single retention pass and reports how many jobs were
// purged. Only terminal jobs are eligible; the store query guarantees a
// sweep never races an in-flight worker.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-j.maxAge)
	expired, err := j.store.ExpiredJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, job := range expired {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		j.purge(ctx, job)
		purged++
	}
	if purged > 0 {
		j.logger.Info("retention sweep finished", logging.Int("purged", purged))
	}
	return purged, nil
}

// purge deletes the artifact first, then the record. Either step failing
// leaves a state the next sweep can finish.
func (j *Janitor) purge(ctx context.Context, job *queue.Job) {
	logger := j.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, job.OwnerID))

	if path := j.artifactPath(job); path != "" {
		removed, err := fileutil.RemoveIfExists(path)
		if err != nil {
			logger.Warn("artifact delete failed", logging.String("path", path), logging.Error(err))
			return
		}
		if removed {
			logger.Debug("artifact deleted", logging.String("path", path))
		}
	}

	if _, err := j.store.Remove(ctx, job.ID); err != nil {
		logger.Warn("record delete failed", logging.Error(err))
		return
	}
	j.registry.Remove(job.ID)
	logger.Info("job purged", logging.String("status", string(job.Status)))
}

func (j *Janitor) artifactPath(job *queue.Job) string {
	ref := job.OutputRef
	if ref == "" {
		return ""
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(j.cfg.Paths.DownloadDir, filepath.FromSlash(ref))
}
