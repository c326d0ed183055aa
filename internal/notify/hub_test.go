package notify

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func recvEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesOnlyTopicSubscribers(t *testing.T) {
	hub := NewHub(testLogger())

	admin := hub.Subscribe(1)
	hub.JoinTopic(admin, TopicModeration)

	bystander := hub.Subscribe(2)

	hub.Broadcast(TopicModeration, Event{Kind: EventPlaceSubmitted, PlaceID: 7, Status: "PENDING"})

	got := recvEvent(t, admin.Outbound, time.Second)
	if got.Kind != EventPlaceSubmitted || got.PlaceID != 7 {
		t.Fatalf("admin event: got %+v", got)
	}
	assertNoEvent(t, bystander.Outbound)
}

func TestDirectedReachesOnlyThatIdentity(t *testing.T) {
	hub := NewHub(testLogger())

	owner := hub.Subscribe(10)
	ownerSecondDevice := hub.Subscribe(10)
	other := hub.Subscribe(11)

	hub.Directed(10, Event{Kind: EventPlaceApproved, PlaceID: 3, Status: "APPROVED", Message: "Votre lieu est en ligne."})

	for _, client := range []*Client{owner, ownerSecondDevice} {
		got := recvEvent(t, client.Outbound, time.Second)
		if got.Kind != EventPlaceApproved || got.Message != "Votre lieu est en ligne." {
			t.Fatalf("owner event: got %+v", got)
		}
	}
	assertNoEvent(t, other.Outbound)
}

func TestDirectedToAbsentIdentityIsLost(t *testing.T) {
	hub := NewHub(testLogger())

	// Nobody is connected as user 42; the event simply vanishes.
	hub.Directed(42, Event{Kind: EventPlaceRejected, PlaceID: 5})

	late := hub.Subscribe(42)
	assertNoEvent(t, late.Outbound)
}

func TestRemoveClosesOutboundAndStopsDelivery(t *testing.T) {
	hub := NewHub(testLogger())

	client := hub.Subscribe(1)
	hub.JoinTopic(client, TopicModeration)
	hub.Remove(client)

	select {
	case _, ok := <-client.Outbound:
		if ok {
			t.Fatalf("outbound should be closed after Remove")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for outbound close")
	}

	// Must not panic on a closed channel.
	hub.Broadcast(TopicModeration, Event{Kind: EventPlaceSubmitted, PlaceID: 1})
	hub.Directed(1, Event{Kind: EventPlaceApproved, PlaceID: 1})
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(testLogger())

	client := hub.Subscribe(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < outboundBuffer+5; i++ {
			hub.Directed(1, Event{Kind: EventPlaceApproved, PlaceID: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher blocked on a full subscriber buffer")
	}

	if got := len(client.Outbound); got != outboundBuffer {
		t.Fatalf("buffered events: want=%d got=%d", outboundBuffer, got)
	}
}
