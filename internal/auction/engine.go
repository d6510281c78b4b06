// Package auction implements the bidding engine: validation, the
// transactional bid coordinator, and the leaderboard projector.
package auction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bidhaus/bidhaus/internal/models"
	"github.com/bidhaus/bidhaus/internal/retry"
	"github.com/bidhaus/bidhaus/internal/store"
	"github.com/bidhaus/bidhaus/internal/ws"
)

// DefaultTopN is the leaderboard size published after each accepted bid.
const DefaultTopN = 5

// MaxTopN caps caller-supplied leaderboard sizes.
const MaxTopN = 50

// Identity resolves bidders. Deactivated accounts are rejected before
// validation.
type Identity interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ExpiryNudger lets a bid attempt that observes a passed deadline poke
// the sweeper instead of waiting for the next tick.
type ExpiryNudger interface {
	Nudge(auctionID uuid.UUID)
}

// BidResult is returned to the caller of PlaceBid after commit.
type BidResult struct {
	AcceptedPrice decimal.Decimal           `json:"accepted_price"`
	Leaderboard   []models.LeaderboardEntry `json:"leaderboard"`
}

// Engine is the bid transaction coordinator. It exclusively owns the
// write path to auction prices and live bids.
type Engine struct {
	store    store.Store
	identity Identity
	hub      *ws.Hub
	policy   retry.Policy
	nudger   ExpiryNudger
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy overrides the conflict retry budget.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithNudger attaches the expiry sweeper's nudge channel.
func WithNudger(n ExpiryNudger) Option {
	return func(e *Engine) { e.nudger = n }
}

// WithClock replaces the time source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(st store.Store, identity Identity, hub *ws.Hub, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		identity: identity,
		hub:      hub,
		policy:   retry.DefaultPolicy,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlaceBid runs the read-validate-write sequence as an atomic unit with
// bounded retry. A conflict (another bidder won the conditional write)
// restarts the whole sequence; a spent retry budget surfaces ErrBusy.
// The bid is never applied partially and never dropped silently.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal) (*BidResult, error) {
	bidder, err := e.identity.Resolve(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	if !bidder.Active {
		return nil, models.ErrAccountInactive
	}

	err = e.policy.Do(ctx, func(ctx context.Context) error {
		a, err := e.store.GetAuction(ctx, auctionID)
		if err != nil {
			return retry.Permanent(err)
		}

		now := e.now()
		if err := Validate(a, bidderID, amount, now); err != nil {
			if errors.Is(err, models.ErrAuctionExpired) && e.nudger != nil {
				e.nudger.Nudge(auctionID)
			}
			return retry.Permanent(err)
		}

		err = e.store.ApplyBid(ctx, auctionID, bidderID, bidder.Username, amount, now)
		if errors.Is(err, models.ErrConflict) {
			return err // transient: another writer won the race, retry
		}
		if err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
	if errors.Is(err, models.ErrConflict) {
		e.logger.Warn("bid retry budget exhausted",
			zap.String("auction_id", auctionID.String()),
			zap.String("bidder_id", bidderID.String()))
		return nil, models.ErrBusy
	}
	if err != nil {
		return nil, err
	}

	// Post-commit side effects: projection and fan-out. These must not
	// roll back the committed bid.
	leaderboard, err := e.Leaderboard(ctx, auctionID, DefaultTopN)
	if err != nil {
		e.logger.Error("leaderboard projection after commit failed",
			zap.String("auction_id", auctionID.String()), zap.Error(err))
		leaderboard = nil
	}

	e.hub.Publish(auctionID, ws.Event{
		Type:      ws.EventBidUpdate,
		AuctionID: auctionID,
		Payload: map[string]interface{}{
			"current_price": amount,
			"leaderboard":   leaderboard,
		},
	})

	return &BidResult{AcceptedPrice: amount, Leaderboard: leaderboard}, nil
}

// Leaderboard projects the top-N live bids: amount descending, ties
// broken by earliest placement. Always re-derived from the ledger,
// never cached.
func (e *Engine) Leaderboard(ctx context.Context, auctionID uuid.UUID, topN int) ([]models.LeaderboardEntry, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if topN > MaxTopN {
		topN = MaxTopN
	}

	bids, err := e.store.LiveBids(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load live bids: %w", err)
	}

	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Amount.Equal(bids[j].Amount) {
			return bids[i].PlacedAt.Before(bids[j].PlacedAt)
		}
		return bids[i].Amount.GreaterThan(bids[j].Amount)
	})
	if len(bids) > topN {
		bids = bids[:topN]
	}

	entries := make([]models.LeaderboardEntry, 0, len(bids))
	for _, b := range bids {
		entries = append(entries, models.LeaderboardEntry{
			BidderID:   b.BidderID,
			BidderName: b.BidderName,
			Amount:     b.Amount,
			PlacedAt:   b.PlacedAt,
		})
	}
	return entries, nil
}

// Auction returns a snapshot of one auction for pull-based
// reconciliation.
func (e *Engine) Auction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return e.store.GetAuction(ctx, id)
}

// RemoveBid deletes a bidder's live bid. This is the rare,
// independently-authorized removal path, not part of bidding: the
// auction price is never lowered, and the next projection simply
// re-derives without the removed bid.
func (e *Engine) RemoveBid(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	if err := e.store.RemoveBid(ctx, auctionID, bidderID); err != nil {
		return err
	}

	leaderboard, err := e.Leaderboard(ctx, auctionID, DefaultTopN)
	if err != nil {
		e.logger.Error("leaderboard projection after removal failed",
			zap.String("auction_id", auctionID.String()), zap.Error(err))
		return nil
	}
	e.hub.Publish(auctionID, ws.Event{
		Type:      ws.EventBidUpdate,
		AuctionID: auctionID,
		Payload:   map[string]interface{}{"leaderboard": leaderboard},
	})
	return nil
}
