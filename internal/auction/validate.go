package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidhaus/bidhaus/internal/models"
)

// Validate decides whether a proposed bid is admissible against a
// snapshot of the auction. It is pure and has no side effects, so it
// serves both as a cheap pre-check and as the authoritative check
// re-run on every coordinator attempt. Rules apply in order:
//
//  1. auction must be active
//  2. the deadline must not have passed
//  3. the seller cannot bid on their own auction
//  4. the amount must reach floor + minimum increment, where floor is
//     max(current price, starting price)
func Validate(a *models.Auction, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if a.Status != models.StatusActive {
		return models.ErrAuctionNotActive
	}
	if !now.Before(a.EndsAt) {
		return models.ErrAuctionExpired
	}
	if bidderID == a.SellerID {
		return models.ErrSelfBid
	}
	if min := a.MinAcceptableBid(); amount.LessThan(min) {
		return &models.BidTooLowError{Min: min}
	}
	return nil
}
