// Package registry maintains an in-memory mirror of the job table for fast
// status reads and notification snapshots.
package registry
