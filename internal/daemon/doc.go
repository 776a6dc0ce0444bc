// Package daemon wires the store, registry, executor, notification hub,
// janitor, and API server into a single supervised lifecycle.
package daemon
