package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recv(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "event stream closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_PublishReachesAllRoomSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionID := uuid.New()

	sub1 := hub.Subscribe(auctionID)
	sub2 := hub.Subscribe(auctionID)
	defer sub1.Close()
	defer sub2.Close()

	hub.Publish(auctionID, Event{Type: EventBidUpdate, AuctionID: auctionID})

	assert.Equal(t, EventBidUpdate, recv(t, sub1).Type)
	assert.Equal(t, EventBidUpdate, recv(t, sub2).Type)
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionA := uuid.New()
	auctionB := uuid.New()

	subA := hub.Subscribe(auctionA)
	subB := hub.Subscribe(auctionB)
	defer subA.Close()
	defer subB.Close()

	hub.Publish(auctionA, Event{Type: EventBidUpdate, AuctionID: auctionA})

	assert.Equal(t, auctionA, recv(t, subA).AuctionID)
	select {
	case ev := <-subB.Events():
		t.Fatalf("subscriber of another auction received %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishPreservesOrder(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionID := uuid.New()

	sub := hub.Subscribe(auctionID)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		hub.Publish(auctionID, Event{Type: EventBidUpdate, AuctionID: auctionID, Payload: i})
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, recv(t, sub).Payload)
	}
}

func TestHub_CloseDetachesAndEndsStream(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionID := uuid.New()

	sub := hub.Subscribe(auctionID)
	assert.Equal(t, 1, hub.Subscribers(auctionID))

	sub.Close()
	assert.Equal(t, 0, hub.Subscribers(auctionID))

	_, ok := <-sub.Events()
	assert.False(t, ok, "stream must be closed after Close")

	// Publishing to an empty room is a no-op, and double close is safe.
	hub.Publish(auctionID, Event{Type: EventBidUpdate})
	sub.Close()
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionID := uuid.New()

	slow := hub.Subscribe(auctionID)
	defer slow.Close()

	// Nobody drains; publishes past the buffer must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(auctionID, Event{Type: EventBidUpdate, Payload: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The subscriber missed events but kept the earliest in order.
	assert.Equal(t, 0, recv(t, slow).Payload)
}
