package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fetchd/internal/queue"
)

// Registry keeps an in-memory copy of every job row so status reads and
// notification fan-out never touch SQLite. The store remains the source of
// truth; callers update the registry after each successful persist.
type Registry struct {
	mu   sync.RWMutex
	jobs map[int64]queue.Job
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{jobs: make(map[int64]queue.Job)}
}

// Load replaces the registry contents with every row in the store.
func (r *Registry) Load(ctx context.Context, store *queue.Store) error {
	jobs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	next := make(map[int64]queue.Job, len(jobs))
	for _, job := range jobs {
		next[job.ID] = *job
	}

	r.mu.Lock()
	r.jobs = next
	r.mu.Unlock()
	return nil
}

// Put stores a copy of the job, replacing any existing entry.
func (r *Registry) Put(job *queue.Job) {
	if job == nil {
		return
	}
	r.mu.Lock()
	r.jobs[job.ID] = *job
	r.mu.Unlock()
}

// Remove drops the job from the registry. Missing IDs are a no-op.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// Snapshot returns a copy of a single job.
func (r *Registry) Snapshot(id int64) (queue.Job, bool) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	return job, ok
}

// SnapshotOwner returns copies of every job belonging to an owner, newest
// first. Mutating the result never affects registry state.
func (r *Registry) SnapshotOwner(ownerID string) []queue.Job {
	r.mu.RLock()
	jobs := make([]queue.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.OwnerID == ownerID {
			jobs = append(jobs, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID > jobs[j].ID })
	return jobs
}

// SnapshotAll returns copies of every job, newest first.
func (r *Registry) SnapshotAll() []queue.Job {
	r.mu.RLock()
	jobs := make([]queue.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID > jobs[j].ID })
	return jobs
}

// Len reports the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
