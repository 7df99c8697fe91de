package auction

import "errors"

// Every rejection the registry or state machine can produce is one of these
// sentinels, possibly wrapped with context. Callers dispatch with errors.Is.
// None of them are retryable by this package itself; ErrTransferFailed is the
// only one raised mid-effect, and it always leaves the record unchanged.
var (
	ErrNotFound         = errors.New("auction not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrAuctionClosed    = errors.New("bidding period has ended")
	ErrAuctionStillOpen = errors.New("bidding period has not ended")
	ErrAlreadySettled   = errors.New("auction already settled")
	ErrSelfBid          = errors.New("seller cannot bid on own auction")
	ErrBidTooLow        = errors.New("bid too low")
	ErrUnauthorized     = errors.New("caller may not settle this auction")
	ErrTransferFailed   = errors.New("fund transfer failed")
)
