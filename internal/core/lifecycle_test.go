package core

import (
	"testing"
	"time"
)

func TestLifecycleBroadcasterDeliversToSubscriber(t *testing.T) {
	b := NewLifecycleBroadcaster()
	defer b.Close()

	sub := b.Subscribe()
	b.Publish(LifecycleEvent{Kind: ConnectedToNetwork})

	select {
	case ev := <-sub:
		if ev.Kind != ConnectedToNetwork {
			t.Fatalf("unexpected event kind %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestLifecycleBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewLifecycleBroadcaster()
	defer b.Close()

	subA := b.Subscribe()
	subB := b.Subscribe()
	b.Publish(LifecycleEvent{Kind: PeerAdded})

	<-subA
	<-subB
}
