package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandler_StreamsRoomEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionID := uuid.New()

	srv := httptest.NewServer(Handler(hub, zap.NewNop(), func(r *http.Request) (uuid.UUID, error) {
		return auctionID, nil
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription is registered during the upgrade; wait for it.
	require.Eventually(t, func() bool {
		return hub.Subscribers(auctionID) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(auctionID, Event{Type: EventBidUpdate, AuctionID: auctionID, Payload: map[string]interface{}{"current_price": "150"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventBidUpdate, got.Type)
	assert.Equal(t, auctionID, got.AuctionID)
}

func TestHandler_DisconnectLeavesRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	auctionID := uuid.New()

	srv := httptest.NewServer(Handler(hub, zap.NewNop(), func(r *http.Request) (uuid.UUID, error) {
		return auctionID, nil
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.Subscribers(auctionID) == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.Subscribers(auctionID) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsBadAuctionID(t *testing.T) {
	hub := NewHub(zap.NewNop())

	srv := httptest.NewServer(Handler(hub, zap.NewNop(), func(r *http.Request) (uuid.UUID, error) {
		return uuid.Nil, assert.AnError
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
