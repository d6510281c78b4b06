// Package ws fans auction events out to realtime subscribers. Each
// auction has its own room; delivery is best effort, at most once, in
// publish order. Offline or slow subscribers miss events and catch up
// by re-fetching the leaderboard.
package ws

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published by the engine.
const (
	EventBidUpdate      = "bidUpdate"
	EventAuctionSettled = "auctionSettled"
)

// Event is one fan-out message for an auction room.
type Event struct {
	Type      string      `json:"type"`
	AuctionID uuid.UUID   `json:"auction_id"`
	Payload   interface{} `json:"payload"`
}

// subscriberBuffer bounds how far a subscriber may lag before events
// are dropped for it.
const subscriberBuffer = 16

// Subscriber is one attached consumer of an auction's event stream.
type Subscriber struct {
	hub       *Hub
	auctionID uuid.UUID
	events    chan Event
	closeOnce sync.Once
}

// Events is the stream of events for the subscribed auction. It is
// closed when the subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Close detaches the subscriber from the hub and closes its stream.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

// Hub tracks subscribers per auction and broadcasts events to them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe attaches a new subscriber to an auction's room.
func (h *Hub) Subscribe(auctionID uuid.UUID) *Subscriber {
	sub := &Subscriber{
		hub:       h,
		auctionID: auctionID,
		events:    make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[auctionID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if room, ok := h.rooms[sub.auctionID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.auctionID)
		}
	}
	h.mu.Unlock()

	sub.closeOnce.Do(func() { close(sub.events) })
}

// Publish delivers ev to every current subscriber of the auction's
// room. A subscriber whose buffer is full is skipped; it will
// reconcile through the pull path.
func (h *Hub) Publish(auctionID uuid.UUID, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[auctionID] {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("auction_id", auctionID.String()),
				zap.String("type", ev.Type))
		}
	}
}

// Subscribers returns the current size of an auction's room.
func (h *Hub) Subscribers(auctionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}
