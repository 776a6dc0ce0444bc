// Package preflight runs startup checks for external tools and directory
// permissions before the daemon begins accepting work.
package preflight
