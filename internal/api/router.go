package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidhaus/bidhaus/internal/ws"
)

// NewRouter wires all HTTP routes.
func NewRouter(h *Handler, hub *ws.Hub, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Get("/auctions/{id}", h.GetAuction)
	r.Get("/auctions/{id}/leaderboard", h.GetLeaderboard)

	// Realtime event stream per auction
	r.Get("/ws/auctions/{id}", ws.Handler(hub, logger, func(req *http.Request) (uuid.UUID, error) {
		return uuid.Parse(chi.URLParam(req, "id"))
	}))

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Post("/auctions", h.CreateAuction)
		r.Post("/auctions/{id}/bids", h.PlaceBid)
		r.Delete("/auctions/{id}/bids", h.RemoveBid)
	})

	return r
}
