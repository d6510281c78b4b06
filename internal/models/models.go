package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Auction status values. Transitions are forward-only:
// pending -> active -> expired -> settled.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusSettled = "settled"
)

// DefaultMinIncrement applies when an auction is created without an
// explicit minimum raise.
var DefaultMinIncrement = decimal.NewFromInt(1)

// Auction is the durable record of one sale. CurrentPrice never decreases
// and is always >= StartingPrice once the first bid lands.
type Auction struct {
	ID            uuid.UUID       `json:"id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	Title         string          `json:"title"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MinIncrement  decimal.Decimal `json:"min_increment"`
	StartsAt      time.Time       `json:"starts_at"`
	EndsAt        time.Time       `json:"ends_at"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`

	// Set at settlement. WinnerID and FinalPrice stay nil for a sale
	// that expired with no bids.
	WinnerID   *uuid.UUID       `json:"winner_id,omitempty"`
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
	SettledAt  *time.Time       `json:"settled_at,omitempty"`
}

// Floor is the amount a new bid must strictly exceed by at least
// MinIncrement: the greater of the current and starting price.
func (a *Auction) Floor() decimal.Decimal {
	if a.CurrentPrice.GreaterThan(a.StartingPrice) {
		return a.CurrentPrice
	}
	return a.StartingPrice
}

// MinAcceptableBid is the lowest amount the validator will admit.
func (a *Auction) MinAcceptableBid() decimal.Decimal {
	return a.Floor().Add(a.MinIncrement)
}

// Bid is a bidder's live offer on an auction. There is at most one per
// (auction, bidder); a raise overwrites Amount and PlacedAt in place.
type Bid struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	BidderID   uuid.UUID       `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// LeaderboardEntry is one row of the derived top-N ranking: amount
// descending, earliest PlacedAt breaking ties.
type LeaderboardEntry struct {
	BidderID   uuid.UUID       `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// User represents a registered account. Active gates bidding: a
// deactivated account is rejected before validation.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
