package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the router
	},
}

const writeTimeout = 10 * time.Second

// Handler upgrades the request to a websocket and streams the
// auction's events until the client disconnects. auctionID comes from
// the route.
func Handler(hub *Hub, logger *zap.Logger, auctionID func(r *http.Request) (uuid.UUID, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auctionID(r)
		if err != nil {
			http.Error(w, `{"error": "invalid auction id"}`, http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		sub := hub.Subscribe(id)

		// Writer: pump room events to the connection.
		go func() {
			defer conn.Close()
			for ev := range sub.Events() {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					sub.Close()
					return
				}
			}
		}()

		// Reader: drain until disconnect, then detach from the room.
		go func() {
			defer sub.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
