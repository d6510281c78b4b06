package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bidhaus/bidhaus/internal/models"
)

// DB wraps a PostgreSQL connection pool and implements store.Store and
// store.UserStore. Prices travel as NUMERIC and cross the wire as text
// so they are never rounded through a float.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

const auctionColumns = `id, seller_id, title, starting_price::text, current_price::text,
	min_increment::text, starts_at, ends_at, status, winner_id, final_price::text, settled_at, created_at`

func scanAuction(row pgx.Row) (*models.Auction, error) {
	var (
		a          models.Auction
		starting   string
		current    string
		increment  string
		finalPrice *string
	)
	err := row.Scan(&a.ID, &a.SellerID, &a.Title, &starting, &current, &increment,
		&a.StartsAt, &a.EndsAt, &a.Status, &a.WinnerID, &finalPrice, &a.SettledAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if a.StartingPrice, err = decimal.NewFromString(starting); err != nil {
		return nil, fmt.Errorf("failed to parse starting price: %w", err)
	}
	if a.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("failed to parse current price: %w", err)
	}
	if a.MinIncrement, err = decimal.NewFromString(increment); err != nil {
		return nil, fmt.Errorf("failed to parse min increment: %w", err)
	}
	if finalPrice != nil {
		fp, err := decimal.NewFromString(*finalPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to parse final price: %w", err)
		}
		a.FinalPrice = &fp
	}
	return &a, nil
}

// CreateAuction inserts a new auction record.
func (db *DB) CreateAuction(ctx context.Context, a *models.Auction) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.MinIncrement.IsZero() {
		a.MinIncrement = models.DefaultMinIncrement
	}
	if a.CurrentPrice.IsZero() {
		a.CurrentPrice = a.StartingPrice
	}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO auctions (id, seller_id, title, starting_price, current_price, min_increment, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		a.ID, a.SellerID, a.Title, a.StartingPrice.String(), a.CurrentPrice.String(),
		a.MinIncrement.String(), a.StartsAt, a.EndsAt, a.Status).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

// GetAuction retrieves one auction by ID.
func (db *DB) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	a, err := scanAuction(db.Pool.QueryRow(ctx,
		"SELECT "+auctionColumns+" FROM auctions WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// ApplyBid raises the auction price and upserts the bidder's live bid
// in a single transaction. The price raise is a conditional write: it
// succeeds only while the auction is still active, the deadline has not
// passed, and the amount still clears floor + increment at commit time.
// Zero rows affected means a concurrent writer won the race (or the
// auction moved on), never a silent no-op.
func (db *DB) ApplyBid(ctx context.Context, auctionID, bidderID uuid.UUID, bidderName string, amount decimal.Decimal, at time.Time) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE auctions SET current_price = $2
		WHERE id = $1
		  AND status = 'active'
		  AND ends_at > $3
		  AND $2::numeric >= GREATEST(current_price, starting_price) + min_increment`,
		auctionID, amount.String(), at)
	if err != nil {
		return fmt.Errorf("failed to raise price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.diagnoseBidFailure(ctx, tx, auctionID, at)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bids (auction_id, bidder_id, bidder_name, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auction_id, bidder_id) DO UPDATE
		SET amount = EXCLUDED.amount, placed_at = EXCLUDED.placed_at, bidder_name = EXCLUDED.bidder_name
		WHERE bids.amount < EXCLUDED.amount`,
		auctionID, bidderID, bidderName, amount.String(), at)
	if err != nil {
		return fmt.Errorf("failed to upsert bid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bid: %w", err)
	}
	return nil
}

// diagnoseBidFailure classifies a rejected conditional write inside the
// same transaction.
func (db *DB) diagnoseBidFailure(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, at time.Time) error {
	var status string
	var endsAt time.Time
	err := tx.QueryRow(ctx,
		"SELECT status, ends_at FROM auctions WHERE id = $1", auctionID).Scan(&status, &endsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrAuctionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect auction: %w", err)
	}
	if status != models.StatusActive {
		return models.ErrAuctionNotActive
	}
	if !at.Before(endsAt) {
		return models.ErrAuctionExpired
	}
	return models.ErrConflict
}

// LiveBids retrieves all live bids for an auction.
func (db *DB) LiveBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT auction_id, bidder_id, bidder_name, amount::text, placed_at
		FROM bids WHERE auction_id = $1`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		var amount string
		if err := rows.Scan(&b.AuctionID, &b.BidderID, &b.BidderName, &amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse bid amount: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bids, nil
}

// RemoveBid deletes a bidder's live bid.
func (db *DB) RemoveBid(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		"DELETE FROM bids WHERE auction_id = $1 AND bidder_id = $2", auctionID, bidderID)
	if err != nil {
		return fmt.Errorf("failed to remove bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrBidNotFound
	}
	return nil
}

func (db *DB) listByStatus(ctx context.Context, status, timeColumn string, now time.Time) ([]models.Auction, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+auctionColumns+" FROM auctions WHERE status = $1 AND "+timeColumn+" <= $2",
		status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return auctions, nil
}

// ListDueForActivation returns pending auctions whose start time has passed.
func (db *DB) ListDueForActivation(ctx context.Context, now time.Time) ([]models.Auction, error) {
	return db.listByStatus(ctx, models.StatusPending, "starts_at", now)
}

// ListExpired returns active auctions whose end time has passed.
func (db *DB) ListExpired(ctx context.Context, now time.Time) ([]models.Auction, error) {
	return db.listByStatus(ctx, models.StatusActive, "ends_at", now)
}

// MarkActive transitions pending -> active under a status guard.
func (db *DB) MarkActive(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	return db.transition(ctx, auctionID, models.StatusPending, models.StatusActive)
}

// MarkExpired transitions active -> expired under a status guard.
func (db *DB) MarkExpired(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	return db.transition(ctx, auctionID, models.StatusActive, models.StatusExpired)
}

func (db *DB) transition(ctx context.Context, auctionID uuid.UUID, from, to string) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE auctions SET status = $3 WHERE id = $1 AND status = $2",
		auctionID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition auction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSettled transitions expired -> settled and records the outcome.
func (db *DB) MarkSettled(ctx context.Context, auctionID uuid.UUID, winner *uuid.UUID, finalPrice *decimal.Decimal, at time.Time) (bool, error) {
	var price *string
	if finalPrice != nil {
		s := finalPrice.String()
		price = &s
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE auctions SET status = 'settled', winner_id = $2, final_price = $3, settled_at = $4
		WHERE id = $1 AND status = 'expired'`,
		auctionID, winner, price, at)
	if err != nil {
		return false, fmt.Errorf("failed to settle auction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreateUser inserts a new user.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, password_hash, active, created_at`,
		username, passwordHash).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, "username = $1", username)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return db.getUser(ctx, "id = $1", id)
}

func (db *DB) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, active, created_at FROM users WHERE "+where,
		arg).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Active, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetUserActive flips the active flag on an account.
func (db *DB) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE users SET active = $2 WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
