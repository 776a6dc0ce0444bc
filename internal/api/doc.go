// Package api serves the job orchestration HTTP surface: submission, status,
// deletion, the live event stream, and static artifact downloads.
package api
