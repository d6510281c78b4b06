package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Terminal rejections, reported to the caller with a specific reason.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction not active")
	ErrAuctionExpired   = errors.New("auction expired")
	ErrSelfBid          = errors.New("seller cannot bid on own auction")
	ErrAccountInactive  = errors.New("account inactive")
	ErrBidNotFound      = errors.New("bid not found")
	ErrUserNotFound     = errors.New("user not found")
)

// ErrConflict means a concurrent writer won the race for the conditional
// write. It is transient: the coordinator retries the whole
// read-validate-write sequence.
var ErrConflict = errors.New("concurrent bid conflict")

// ErrBusy is surfaced when the retry budget is spent without a commit.
// The bid was never applied; the caller may resubmit.
var ErrBusy = errors.New("auction busy, try again")

// BidTooLowError rejects a bid below the acceptable minimum and carries
// that minimum so callers can report it.
type BidTooLowError struct {
	Min decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: must be at least %s", e.Min)
}

// IsRejection reports whether err is a terminal, user-facing rejection
// as opposed to a transient conflict or a storage failure.
func IsRejection(err error) bool {
	var tooLow *BidTooLowError
	switch {
	case errors.Is(err, ErrAuctionNotFound),
		errors.Is(err, ErrAuctionNotActive),
		errors.Is(err, ErrAuctionExpired),
		errors.Is(err, ErrSelfBid),
		errors.Is(err, ErrAccountInactive),
		errors.As(err, &tooLow):
		return true
	}
	return false
}
