// Package sched runs the expiry sweep: a recurring pass over the
// auction store that activates due auctions, detects passed deadlines,
// and settles each expired auction exactly once.
package sched

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bidhaus/bidhaus/internal/models"
	"github.com/bidhaus/bidhaus/internal/store"
	"github.com/bidhaus/bidhaus/internal/ws"
)

// DefaultInterval is the sweep cadence.
const DefaultInterval = time.Minute

// SettlementEvent is handed to the notification/payment collaborator
// and published on the auction's fan-out room. WinnerID and FinalPrice
// are nil when the auction expired with no bids.
type SettlementEvent struct {
	AuctionID  uuid.UUID        `json:"auction_id"`
	Title      string           `json:"title"`
	WinnerID   *uuid.UUID       `json:"winner_id"`
	WinnerName string           `json:"winner_name,omitempty"`
	FinalPrice *decimal.Decimal `json:"final_price"`
	SettledAt  time.Time        `json:"settled_at"`
}

// Notifier receives settlement events to drive order creation and
// payout. The sweep does not wait on or retry its outcome; the settled
// status in the store is the source of truth.
type Notifier interface {
	NotifySettlement(ctx context.Context, ev SettlementEvent) error
}

// LogNotifier stands in for the external notification service.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) NotifySettlement(ctx context.Context, ev SettlementEvent) error {
	fields := []zap.Field{
		zap.String("auction_id", ev.AuctionID.String()),
		zap.Time("settled_at", ev.SettledAt),
	}
	if ev.WinnerID != nil {
		fields = append(fields,
			zap.String("winner_id", ev.WinnerID.String()),
			zap.String("final_price", ev.FinalPrice.String()))
	}
	n.Logger.Info("auction settled", fields...)
	return nil
}

// Sweeper polls the store on a fixed interval. Each per-auction
// settlement is its own guarded, idempotent unit, so overlapping or
// crashed sweeps cannot double-settle.
type Sweeper struct {
	store    store.Store
	hub      *ws.Hub
	notifier Notifier
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
	nudges   chan uuid.UUID
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithInterval overrides the sweep cadence.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithClock replaces the time source. Tests use this.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(st store.Store, hub *ws.Hub, notifier Notifier, logger *zap.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    st,
		hub:      hub,
		notifier: notifier,
		logger:   logger,
		interval: DefaultInterval,
		now:      time.Now,
		nudges:   make(chan uuid.UUID, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nudge asks the sweeper to look at one auction ahead of the next
// tick. Non-blocking; a full queue just defers to the sweep.
func (s *Sweeper) Nudge(auctionID uuid.UUID) {
	select {
	case s.nudges <- auctionID:
	default:
	}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		case id := <-s.nudges:
			if err := s.SettleOne(ctx, id); err != nil {
				s.logger.Error("nudged settlement failed",
					zap.String("auction_id", id.String()), zap.Error(err))
			}
		}
	}
}

// Sweep runs one full pass: activate due auctions, then settle all
// auctions past their deadline. Failures on one auction never block
// the rest of the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	due, err := s.store.ListDueForActivation(ctx, now)
	if err != nil {
		s.logger.Error("activation scan failed", zap.Error(err))
	}
	for _, a := range due {
		ok, err := s.store.MarkActive(ctx, a.ID)
		if err != nil {
			s.logger.Error("activation failed",
				zap.String("auction_id", a.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			s.logger.Info("auction activated", zap.String("auction_id", a.ID.String()))
		}
	}

	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		s.logger.Error("expiry scan failed", zap.Error(err))
		return
	}
	for _, a := range expired {
		if err := s.SettleOne(ctx, a.ID); err != nil {
			s.logger.Error("settlement failed",
				zap.String("auction_id", a.ID.String()), zap.Error(err))
		}
	}
}

// SettleOne drives a single auction through expired -> settled. Every
// transition is guarded by the current status, so concurrent calls for
// the same auction settle it exactly once; the losers are no-ops.
func (s *Sweeper) SettleOne(ctx context.Context, auctionID uuid.UUID) error {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	now := s.now()

	if a.Status == models.StatusActive {
		if now.Before(a.EndsAt) {
			return nil // not due yet; a stray nudge
		}
		if _, err := s.store.MarkExpired(ctx, auctionID); err != nil {
			return err
		}
		// Whether this call or a concurrent one won, the auction is now
		// expired; continue into settlement.
	} else if a.Status != models.StatusExpired {
		return nil // pending, or already settled
	}

	winner, winnerName, finalPrice, err := s.pickWinner(ctx, auctionID)
	if err != nil {
		return err
	}

	won, err := s.store.MarkSettled(ctx, auctionID, winner, finalPrice, now)
	if err != nil {
		return err
	}
	if !won {
		return nil // another sweep settled it first
	}

	ev := SettlementEvent{
		AuctionID:  auctionID,
		Title:      a.Title,
		WinnerID:   winner,
		WinnerName: winnerName,
		FinalPrice: finalPrice,
		SettledAt:  now,
	}
	s.hub.Publish(auctionID, ws.Event{
		Type:      ws.EventAuctionSettled,
		AuctionID: auctionID,
		Payload:   ev,
	})
	if err := s.notifier.NotifySettlement(ctx, ev); err != nil {
		// Settlement stands regardless; the collaborator owns retries.
		s.logger.Warn("settlement notification failed",
			zap.String("auction_id", auctionID.String()), zap.Error(err))
	}
	return nil
}

// pickWinner returns the highest live bid, earliest placement breaking
// ties, or nils when no bids exist.
func (s *Sweeper) pickWinner(ctx context.Context, auctionID uuid.UUID) (*uuid.UUID, string, *decimal.Decimal, error) {
	bids, err := s.store.LiveBids(ctx, auctionID)
	if err != nil {
		return nil, "", nil, err
	}
	if len(bids) == 0 {
		return nil, "", nil, nil
	}

	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Amount.Equal(bids[j].Amount) {
			return bids[i].PlacedAt.Before(bids[j].PlacedAt)
		}
		return bids[i].Amount.GreaterThan(bids[j].Amount)
	})
	top := bids[0]
	return &top.BidderID, top.BidderName, &top.Amount, nil
}
