// Package executor owns the download worker pool and the job state machine
// transitions from pending through downloading to a terminal state.
package executor
