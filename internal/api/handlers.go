package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bidhaus/bidhaus/internal/auction"
	"github.com/bidhaus/bidhaus/internal/auth"
	"github.com/bidhaus/bidhaus/internal/models"
	"github.com/bidhaus/bidhaus/internal/store"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	Engine *auction.Engine
	Auth   *auth.Service
	Store  store.Store
	Logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(engine *auction.Engine, authService *auth.Service, st store.Store, logger *zap.Logger) *Handler {
	return &Handler{Engine: engine, Auth: authService, Store: st, Logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeBidError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) writeBidError(w http.ResponseWriter, err error) {
	var tooLow *models.BidTooLowError
	switch {
	case errors.Is(err, models.ErrAuctionNotFound):
		writeError(w, http.StatusNotFound, "auction_not_found", err.Error())
	case errors.Is(err, models.ErrAuctionNotActive):
		writeError(w, http.StatusConflict, "auction_not_active", err.Error())
	case errors.Is(err, models.ErrAuctionExpired):
		writeError(w, http.StatusConflict, "auction_expired", err.Error())
	case errors.Is(err, models.ErrSelfBid):
		writeError(w, http.StatusForbidden, "self_bid_forbidden", err.Error())
	case errors.Is(err, models.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account_inactive", err.Error())
	case errors.As(err, &tooLow):
		writeError(w, http.StatusBadRequest, "bid_too_low", err.Error())
	case errors.Is(err, models.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, "busy", err.Error())
	case errors.Is(err, models.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "unknown_user", err.Error())
	default:
		h.Logger.Error("bid placement failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "username and password required")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "registration_failed", "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login handles user login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrAccountInactive) {
			writeError(w, http.StatusForbidden, "account_inactive", "account is deactivated")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// JWTAuthMiddleware verifies JWT tokens.
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authorization header required")
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.Auth.UserFromToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return id, ok
}

func auctionIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// CreateAuction admits a new auction into the engine. This stands in
// for the catalog hand-off: starting price, deadline, and seller come
// from the caller, and the engine owns the state from here on.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var req struct {
		Title         string          `json:"title"`
		StartingPrice decimal.Decimal `json:"starting_price"`
		MinIncrement  decimal.Decimal `json:"min_increment"`
		StartsAt      *time.Time      `json:"starts_at"`
		EndsAt        time.Time       `json:"ends_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "title required")
		return
	}
	if !req.StartingPrice.IsPositive() {
		writeError(w, http.StatusBadRequest, "bad_request", "starting price must be positive")
		return
	}
	if req.MinIncrement.IsNegative() {
		writeError(w, http.StatusBadRequest, "bad_request", "min increment cannot be negative")
		return
	}

	now := time.Now()
	startsAt := now
	status := models.StatusActive
	if req.StartsAt != nil && req.StartsAt.After(now) {
		startsAt = *req.StartsAt
		status = models.StatusPending
	}
	if !req.EndsAt.After(startsAt) {
		writeError(w, http.StatusBadRequest, "bad_request", "end time must be after start time")
		return
	}

	a := &models.Auction{
		SellerID:      sellerID,
		Title:         req.Title,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		MinIncrement:  req.MinIncrement,
		StartsAt:      startsAt,
		EndsAt:        req.EndsAt,
		Status:        status,
	}
	if err := h.Store.CreateAuction(r.Context(), a); err != nil {
		h.Logger.Error("auction creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to create auction")
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// GetAuction returns a snapshot of one auction.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid auction id")
		return
	}

	a, err := h.Engine.Auction(r.Context(), id)
	if errors.Is(err, models.ErrAuctionNotFound) {
		writeError(w, http.StatusNotFound, "auction_not_found", "auction not found")
		return
	}
	if err != nil {
		h.Logger.Error("auction lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// PlaceBid submits a bid for the authenticated user.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	id, err := auctionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid auction id")
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	result, err := h.Engine.PlaceBid(r.Context(), id, bidderID, req.Amount)
	if err != nil {
		h.writeBidError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetLeaderboard returns the auction's top-N ranked bids.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := auctionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid auction id")
		return
	}

	topN := auction.DefaultTopN
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid top parameter")
			return
		}
		topN = n
	}

	entries, err := h.Engine.Leaderboard(r.Context(), id, topN)
	if err != nil {
		h.Logger.Error("leaderboard projection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// RemoveBid deletes the authenticated user's own live bid. Rare,
// explicitly requested; not part of the bidding hot path.
func (h *Handler) RemoveBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	id, err := auctionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid auction id")
		return
	}

	if err := h.Engine.RemoveBid(r.Context(), id, bidderID); err != nil {
		if errors.Is(err, models.ErrBidNotFound) {
			writeError(w, http.StatusNotFound, "bid_not_found", "no live bid to remove")
			return
		}
		h.Logger.Error("bid removal failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "bid removed"})
}
