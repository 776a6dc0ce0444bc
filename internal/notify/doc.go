// Package notify fans per-owner job snapshots out to live subscribers.
package notify
