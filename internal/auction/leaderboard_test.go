package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidhaus/bidhaus/internal/memstore"
	"github.com/bidhaus/bidhaus/internal/models"
	"github.com/bidhaus/bidhaus/internal/store"
	"github.com/bidhaus/bidhaus/internal/ws"
)

// cannedBids serves a fixed ledger snapshot so ordering and tie-breaks
// can be pinned exactly.
type cannedBids struct {
	store.Store
	bids []models.Bid
}

func (c cannedBids) LiveBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	out := make([]models.Bid, len(c.bids))
	copy(out, c.bids)
	return out, nil
}

func TestEngine_Leaderboard_OrderingAndTieBreak(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	st := cannedBids{
		Store: memstore.New(),
		bids: []models.Bid{
			{BidderID: second, BidderName: "late-tie", Amount: decimal.NewFromInt(200), PlacedAt: base.Add(time.Minute)},
			{BidderID: third, BidderName: "low", Amount: decimal.NewFromInt(120), PlacedAt: base},
			{BidderID: first, BidderName: "early-tie", Amount: decimal.NewFromInt(200), PlacedAt: base},
		},
	}
	engine := NewEngine(st, nil, ws.NewHub(zap.NewNop()), zap.NewNop())

	lb, err := engine.Leaderboard(context.Background(), uuid.New(), 5)
	require.NoError(t, err)
	require.Len(t, lb, 3)

	// Amount descending, earliest placement wins the tie.
	assert.Equal(t, first, lb[0].BidderID)
	assert.Equal(t, second, lb[1].BidderID)
	assert.Equal(t, third, lb[2].BidderID)
	for i := 1; i < len(lb); i++ {
		assert.True(t, lb[i].Amount.LessThanOrEqual(lb[i-1].Amount))
	}
}

func TestEngine_Leaderboard_Truncation(t *testing.T) {
	base := time.Now()
	var bids []models.Bid
	for i := 0; i < 10; i++ {
		bids = append(bids, models.Bid{
			BidderID: uuid.New(),
			Amount:   decimal.NewFromInt(int64(100 + i)),
			PlacedAt: base,
		})
	}
	engine := NewEngine(cannedBids{Store: memstore.New(), bids: bids}, nil, ws.NewHub(zap.NewNop()), zap.NewNop())

	lb, err := engine.Leaderboard(context.Background(), uuid.New(), 3)
	require.NoError(t, err)
	require.Len(t, lb, 3)
	assert.True(t, lb[0].Amount.Equal(decimal.NewFromInt(109)))

	// Zero and oversized N fall back to sane bounds.
	lb, err = engine.Leaderboard(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Len(t, lb, DefaultTopN)

	lb, err = engine.Leaderboard(context.Background(), uuid.New(), 1000)
	require.NoError(t, err)
	assert.Len(t, lb, 10)
}

func TestEngine_Leaderboard_EmptyLedger(t *testing.T) {
	st := memstore.New()
	engine := NewEngine(st, nil, ws.NewHub(zap.NewNop()), zap.NewNop())

	lb, err := engine.Leaderboard(context.Background(), uuid.New(), 5)
	require.NoError(t, err)
	assert.Empty(t, lb)
}
