// Package notifications sends operator push notifications through ntfy. A
// noop implementation is used when no topic is configured so callers never
// branch on configuration.
package notifications
