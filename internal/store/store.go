// Package store defines the transactional contract the bidding engine
// requires from whatever durable storage backs it. Two implementations
// exist: internal/db (PostgreSQL via pgx) and internal/memstore (in
// memory, used by tests and local development).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidhaus/bidhaus/internal/models"
)

// Store is the auction store plus bid ledger. Implementations must make
// ApplyBid and the Mark* transitions atomic and conditional: a write
// whose guard no longer holds must fail without side effects.
type Store interface {
	// CreateAuction records a new auction handed over by the catalog
	// flow. The engine owns its state from here until settlement.
	CreateAuction(ctx context.Context, a *models.Auction) error

	// GetAuction returns a snapshot of one auction, or
	// models.ErrAuctionNotFound.
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)

	// ApplyBid atomically raises the auction's current price to amount
	// and upserts the bidder's live bid, as one unit. The write only
	// succeeds while the auction is active, not past endsAt, and amount
	// is at least floor + min increment at commit time. Failures:
	//   - models.ErrAuctionNotFound / ErrAuctionNotActive / ErrAuctionExpired
	//     when the status or deadline guard fails;
	//   - models.ErrConflict when a concurrent writer moved the price so
	//     that amount no longer clears the floor.
	// A partial write (price raised but bid not recorded, or vice versa)
	// must never be observable.
	ApplyBid(ctx context.Context, auctionID, bidderID uuid.UUID, bidderName string, amount decimal.Decimal, at time.Time) error

	// LiveBids returns a consistent snapshot of all live bids for an
	// auction, in no particular order.
	LiveBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error)

	// RemoveBid deletes a bidder's live bid. Rare, independently
	// authorized; never lowers the auction's current price.
	RemoveBid(ctx context.Context, auctionID, bidderID uuid.UUID) error

	// ListDueForActivation returns pending auctions whose start time has
	// passed.
	ListDueForActivation(ctx context.Context, now time.Time) ([]models.Auction, error)

	// ListExpired returns active auctions whose end time has passed.
	ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error)

	// MarkActive transitions pending -> active. Returns false when the
	// auction was not pending (someone else already moved it).
	MarkActive(ctx context.Context, auctionID uuid.UUID) (bool, error)

	// MarkExpired transitions active -> expired under the same guard
	// discipline. The false return makes overlapping sweeps safe: only
	// one caller wins the transition.
	MarkExpired(ctx context.Context, auctionID uuid.UUID) (bool, error)

	// MarkSettled transitions expired -> settled and records the
	// outcome. winner and finalPrice are nil for a no-bid settlement.
	MarkSettled(ctx context.Context, auctionID uuid.UUID, winner *uuid.UUID, finalPrice *decimal.Decimal, at time.Time) (bool, error)
}

// UserStore backs the identity collaborator.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// SetUserActive flips the active flag; deactivated accounts cannot bid.
	SetUserActive(ctx context.Context, id uuid.UUID, active bool) error
}
