// Package queue persists download jobs in SQLite and defines the job state
// machine shared by the executor, janitor, and HTTP API.
package queue
