package notify_test

import (
	"testing"
	"time"

	"fetchd/internal/logging"
	"fetchd/internal/notify"
	"fetchd/internal/queue"
	"fetchd/internal/registry"
)

func newHub(t *testing.T) (*notify.Hub, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	return notify.NewHub(reg, logging.NewNop()), reg
}

func receive(t *testing.T, sub *notify.Subscription) notify.Snapshot {
	t.Helper()
	select {
	case snap := <-sub.C():
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestPublishDeliversOwnerSnapshot(t *testing.T) {
	hub, reg := newHub(t)
	reg.Put(&queue.Job{ID: 1, OwnerID: "owner-a", Status: queue.StatusPending})
	reg.Put(&queue.Job{ID: 2, OwnerID: "owner-b", Status: queue.StatusPending})

	sub := hub.Subscribe("owner-a")
	defer hub.Unsubscribe(sub)

	hub.Publish("owner-a")
	snap := receive(t, sub)
	if len(snap) != 1 {
		t.Fatalf("expected 1 job in snapshot, got %d", len(snap))
	}
	if snap[1].OwnerID != "owner-a" {
		t.Fatalf("unexpected snapshot contents: %#v", snap)
	}
}

func TestPublishToOtherOwnerDeliversNothing(t *testing.T) {
	hub, reg := newHub(t)
	reg.Put(&queue.Job{ID: 1, OwnerID: "owner-b"})

	sub := hub.Subscribe("owner-a")
	defer hub.Unsubscribe(sub)

	hub.Publish("owner-b")
	select {
	case snap := <-sub.C():
		t.Fatalf("unexpected delivery: %#v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberGetsLatestSnapshot(t *testing.T) {
	hub, reg := newHub(t)
	sub := hub.Subscribe("owner-a")
	defer hub.Unsubscribe(sub)

	reg.Put(&queue.Job{ID: 1, OwnerID: "owner-a", Status: queue.StatusPending})
	hub.Publish("owner-a")

	reg.Put(&queue.Job{ID: 1, OwnerID: "owner-a", Status: queue.StatusCompleted})
	hub.Publish("owner-a")

	snap := receive(t, sub)
	if snap[1].Status != queue.StatusCompleted {
		t.Fatalf("expected latest snapshot, got %s", snap[1].Status)
	}
	select {
	case extra := <-sub.C():
		t.Fatalf("expected single pending snapshot, got extra %#v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub, _ := newHub(t)
	sub := hub.Subscribe("owner-a")

	hub.Unsubscribe(sub)
	if _, open := <-sub.C(); open {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if hub.SubscriberCount("owner-a") != 0 {
		t.Fatal("expected subscriber removed")
	}

	hub.Unsubscribe(sub)
	hub.Publish("owner-a")
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	hub, reg := newHub(t)
	reg.Put(&queue.Job{ID: 5, OwnerID: "owner-a"})

	first := hub.Subscribe("owner-a")
	second := hub.Subscribe("owner-a")
	defer hub.Unsubscribe(first)
	defer hub.Unsubscribe(second)

	hub.Publish("owner-a")
	if snap := receive(t, first); len(snap) != 1 {
		t.Fatalf("first subscriber snapshot: %#v", snap)
	}
	if snap := receive(t, second); len(snap) != 1 {
		t.Fatalf("second subscriber snapshot: %#v", snap)
	}
}
