// Package memstore is an in-memory implementation of the store
// contracts. It backs the engine tests and local development; the
// conditional-write semantics mirror internal/db exactly.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidhaus/bidhaus/internal/models"
)

type bidKey struct {
	auctionID uuid.UUID
	bidderID  uuid.UUID
}

// Store holds all state behind a single mutex. Every exported method
// takes a consistent snapshot or performs its writes as one atomic unit.
type Store struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*models.Auction
	bids     map[bidKey]*models.Bid
	users    map[uuid.UUID]*models.User
	byName   map[string]uuid.UUID
}

func New() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]*models.Auction),
		bids:     make(map[bidKey]*models.Bid),
		users:    make(map[uuid.UUID]*models.User),
		byName:   make(map[string]uuid.UUID),
	}
}

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.MinIncrement.IsZero() {
		a.MinIncrement = models.DefaultMinIncrement
	}
	if a.CurrentPrice.IsZero() {
		a.CurrentPrice = a.StartingPrice
	}
	cp := *a
	s.auctions[a.ID] = &cp
	return nil
}

func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, models.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

// ApplyBid performs the conditional price raise and live-bid upsert as
// one atomic unit under the store lock.
func (s *Store) ApplyBid(ctx context.Context, auctionID, bidderID uuid.UUID, bidderName string, amount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return models.ErrAuctionNotFound
	}
	if a.Status != models.StatusActive {
		return models.ErrAuctionNotActive
	}
	if !at.Before(a.EndsAt) {
		return models.ErrAuctionExpired
	}
	// The authoritative floor check. The caller validated against a
	// snapshot; a concurrent commit may have moved the floor since.
	if amount.LessThan(a.MinAcceptableBid()) {
		return models.ErrConflict
	}

	a.CurrentPrice = amount

	key := bidKey{auctionID: auctionID, bidderID: bidderID}
	if existing, ok := s.bids[key]; ok {
		existing.Amount = amount
		existing.PlacedAt = at
		existing.BidderName = bidderName
	} else {
		s.bids[key] = &models.Bid{
			AuctionID:  auctionID,
			BidderID:   bidderID,
			BidderName: bidderName,
			Amount:     amount,
			PlacedAt:   at,
		}
	}
	return nil
}

func (s *Store) LiveBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Bid
	for key, b := range s.bids {
		if key.auctionID == auctionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *Store) RemoveBid(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bidKey{auctionID: auctionID, bidderID: bidderID}
	if _, ok := s.bids[key]; !ok {
		return models.ErrBidNotFound
	}
	delete(s.bids, key)
	return nil
}

func (s *Store) ListDueForActivation(ctx context.Context, now time.Time) ([]models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Auction
	for _, a := range s.auctions {
		if a.Status == models.StatusPending && !a.StartsAt.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Auction
	for _, a := range s.auctions {
		if a.Status == models.StatusActive && !a.EndsAt.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Store) MarkActive(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	return s.transition(auctionID, models.StatusPending, models.StatusActive)
}

func (s *Store) MarkExpired(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	return s.transition(auctionID, models.StatusActive, models.StatusExpired)
}

func (s *Store) MarkSettled(ctx context.Context, auctionID uuid.UUID, winner *uuid.UUID, finalPrice *decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return false, models.ErrAuctionNotFound
	}
	if a.Status != models.StatusExpired {
		return false, nil
	}
	a.Status = models.StatusSettled
	a.WinnerID = winner
	a.FinalPrice = finalPrice
	settled := at
	a.SettledAt = &settled
	return true, nil
}

// transition applies a status-guarded state change; false means the
// guard did not hold and nothing changed.
func (s *Store) transition(auctionID uuid.UUID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return false, models.ErrAuctionNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return nil, models.ErrConflict
	}
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	s.users[u.ID] = u
	s.byName[username] = u.ID
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Active = active
	return nil
}
