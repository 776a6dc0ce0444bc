package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fetchd/internal/api"
	"fetchd/internal/config"
	"fetchd/internal/engine"
	"fetchd/internal/executor"
	"fetchd/internal/janitor"
	"fetchd/internal/logging"
	"fetchd/internal/notifications"
	"fetchd/internal/notify"
	"fetchd/internal/preflight"
	"fetchd/internal/queue"
	"fetchd/internal/registry"
)

// Daemon owns the orchestration services and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	registry *registry.Registry
	hub      *notify.Hub
	executor *executor.Executor
	janitor  *janitor.Janitor
	server   *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with its full service graph wired.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	reg := registry.New()
	hub := notify.NewHub(reg, logger)
	resolver := engine.NewYTDLP(logger)
	notifier := notifications.NewService(cfg)
	exec := executor.New(cfg, store, reg, resolver, hub, notifier, logger)
	jan := janitor.New(cfg, store, reg, logger)
	server := api.NewServer(cfg, store, reg, hub, exec, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "fetchd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		registry: reg,
		hub:      hub,
		executor: exec,
		janitor:  jan,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, reconciles interrupted work, and brings
// the services up: workers first, then the sweep, then the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fetchd instance is already running")
	}

	if failed := preflight.Failed(preflight.RunAll(d.cfg)); len(failed) > 0 {
		_ = d.lock.Unlock()
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	reconciled, err := d.store.ResetInterrupted(runCtx)
	if err != nil {
		d.shutdownAfterFailedStart()
		return fmt.Errorf("reconcile interrupted jobs: %w", err)
	}
	if reconciled > 0 {
		d.logger.Warn("reconciled interrupted jobs", logging.Int64("count", reconciled))
	}

	if err := d.registry.Load(runCtx, d.store); err != nil {
		d.shutdownAfterFailedStart()
		return fmt.Errorf("seed registry: %w", err)
	}

	if err := d.executor.Start(runCtx); err != nil {
		d.shutdownAfterFailedStart()
		return fmt.Errorf("start executor: %w", err)
	}

	go d.janitor.Run(runCtx)

	if err := d.server.Start(runCtx); err != nil {
		d.executor.Stop()
		d.shutdownAfterFailedStart()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("fetchd daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()))
	return nil
}

// Stop brings services down in reverse start order and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.executor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fetchd daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the API listen address once started.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Stats exposes job counts per status for the CLI.
func (d *Daemon) Stats(ctx context.Context) (map[queue.Status]int, error) {
	return d.store.Stats(ctx)
}

func (d *Daemon) shutdownAfterFailedStart() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}
