// Package janitor runs the retention sweep that deletes expired job
// artifacts and records.
package janitor
