package notify

import (
	"log/slog"
	"sync"

	"fetchd/internal/logging"
	"fetchd/internal/queue"
)

// Snapshot is the per-owner job view delivered to subscribers.
type Snapshot map[int64]queue.Job

// SnapshotSource provides the current job view for an owner. The registry
// satisfies this.
type SnapshotSource interface {
	SnapshotOwner(ownerID string) []queue.Job
}

// Subscription is a live feed of owner snapshots. Receive from C until the
// caller unsubscribes; the channel is never closed by Publish.
type Subscription struct {
	owner string
	ch    chan Snapshot
}

// C returns the snapshot channel.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Owner returns the owner this subscription follows.
func (s *Subscription) Owner() string {
	return s.owner
}

// Hub fans job snapshots out to per-owner subscribers. Delivery is
// best-effort and at-most-once per publish: a slow subscriber has its stale
// pending snapshot replaced rather than blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	source SnapshotSource
	logger *slog.Logger
}

// NewHub constructs a hub reading snapshots from the given source.
func NewHub(source SnapshotSource, logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		source: source,
		logger: logging.NewComponentLogger(logger, "notify"),
	}
}

// Subscribe registers a live feed for an owner.
func (h *Hub) Subscribe(ownerID string) *Subscription {
	sub := &Subscription{owner: ownerID, ch: make(chan Snapshot, 1)}

	h.mu.Lock()
	set, ok := h.subs[ownerID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[ownerID] = set
	}
	set[sub] = struct{}{}
	count := len(set)
	h.mu.Unlock()

	h.logger.Debug("subscriber added",
		logging.String(logging.FieldOwner, ownerID),
		logging.Int("subscribers", count))
	return sub
}

// Unsubscribe removes a subscription and closes its channel. It is safe to
// call once per subscription, including concurrently with Publish.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	set, ok := h.subs[sub.owner]
	if ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(h.subs, sub.owner)
		}
	}
	h.mu.Unlock()
}

// Publish delivers the owner's current snapshot to every active subscriber.
// Subscribers that have not consumed the previous snapshot receive only the
// newest one.
func (h *Hub) Publish(ownerID string) {
	h.mu.Lock()
	set := h.subs[ownerID]
	if len(set) == 0 {
		h.mu.Unlock()
		return
	}

	jobs := h.source.SnapshotOwner(ownerID)
	snapshot := make(Snapshot, len(jobs))
	for _, job := range jobs {
		snapshot[job.ID] = job
	}

	for sub := range set {
		select {
		case sub.ch <- snapshot:
		default:
			// Replace the stale pending snapshot with the current one.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snapshot:
			default:
			}
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports active subscriptions for an owner.
func (h *Hub) SubscriberCount(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}
