package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fetchd/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the filesystem location of the database.
func (s *Store) Path() string {
	return s.path
}

const jobColumns = "id, owner_id, source_url, format, quality, folder, status, title, byte_size, output_ref, error_detail, created_at, updated_at"

// timeLayout is a fixed-width RFC3339 variant so stored timestamps compare
// correctly as strings in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Insert persists a new pending job and returns the stored row.
func (s *Store) Insert(ctx context.Context, ownerID, sourceURL, format, quality, folder string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
        INSERT INTO jobs (owner_id, source_url, format, quality, folder, status, byte_size, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		ownerID,
		sourceURL,
		format,
		quality,
		nullableString(folder),
		string(StatusPending),
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetch inserted job id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update persists the entire job record. Jobs are owned by a single worker at
// a time, so a full-row write cannot clobber concurrent progress. It reports
// whether a row was written; false means the job was deleted concurrently and
// callers must not act as if the state change took effect.
func (s *Store) Update(ctx context.Context, job *Job) (bool, error) {
	if job == nil {
		return false, errors.New("job is nil")
	}
	ctx = ensureContext(ctx)
	job.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
        UPDATE jobs SET
            owner_id = ?,
            source_url = ?,
            format = ?,
            quality = ?,
            folder = ?,
            status = ?,
            title = ?,
            byte_size = ?,
            output_ref = ?,
            error_detail = ?,
            updated_at = ?
        WHERE id = ?`,
		job.OwnerID,
		job.SourceURL,
		job.Format,
		job.Quality,
		nullableString(job.Folder),
		string(job.Status),
		nullableString(job.Title),
		job.ByteSize,
		nullableString(job.OutputRef),
		nullableString(job.ErrorDetail),
		job.UpdatedAt.Format(timeLayout),
		job.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update job %d: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update job %d: %w", job.ID, err)
	}
	return affected > 0, nil
}

// GetByID fetches a job by identifier. Returns nil when no row exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns every job ordered newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY id DESC")
}

// ListByOwner returns all jobs belonging to an owner, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*Job, error) {
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs WHERE owner_id = ? ORDER BY id DESC", ownerID)
}

// Remove deletes a job row. It reports whether a row was deleted.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete job %d: %w", id, err)
	}
	return affected > 0, nil
}

// ExpiredJobs returns terminal jobs created before the cutoff. Jobs that are
// still pending or downloading are never eligible for retention sweeps.
func (s *Store) ExpiredJobs(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	return s.queryJobs(ctx, `
        SELECT `+jobColumns+` FROM jobs
        WHERE status IN (?, ?, ?) AND created_at < ?
        ORDER BY id ASC`,
		string(StatusCompleted),
		string(StatusFailed),
		string(StatusError),
		cutoff.UTC().Format(timeLayout),
	)
}

// ResetInterrupted marks every non-terminal job as errored. It runs once at
// startup so work abandoned by a previous process never appears in-flight.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `
        UPDATE jobs SET status = ?, error_detail = ?, output_ref = NULL, updated_at = ?
        WHERE status IN (?, ?)`,
		string(StatusError),
		InterruptedDetail,
		time.Now().UTC().Format(timeLayout),
		string(StatusPending),
		string(StatusDownloading),
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	return affected, nil
}

// Stats reports job counts per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		status, ok := ParseStatus(statusStr)
		if !ok {
			continue
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          int64
		ownerID     string
		sourceURL   string
		format      string
		quality     string
		folder      sql.NullString
		statusStr   string
		title       sql.NullString
		byteSize    sql.NullInt64
		outputRef   sql.NullString
		errorDetail sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&sourceURL,
		&format,
		&quality,
		&folder,
		&statusStr,
		&title,
		&byteSize,
		&outputRef,
		&errorDetail,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("unknown job status %q", statusStr)
	}

	job := &Job{
		ID:          id,
		OwnerID:     ownerID,
		SourceURL:   sourceURL,
		Format:      format,
		Quality:     quality,
		Folder:      folder.String,
		Status:      status,
		Title:       title.String,
		ByteSize:    byteSize.Int64,
		OutputRef:   outputRef.String,
		ErrorDetail: errorDetail.String,
		CreatedAt:   parseTimeString(createdRaw.String),
		UpdatedAt:   parseTimeString(updatedRaw.String),
	}
	return job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
