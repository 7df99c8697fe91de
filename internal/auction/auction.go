// Package auction implements the escrowed-auction core: a registry that
// lists items for sale and a state machine that admits competing bids,
// refunds outbid parties, and settles funds to the seller once the bidding
// window closes.
//
// The package holds the authoritative state table in memory and guarantees
// single-writer access per auction record. Money never moves except through
// the Custody collaborator, and every outgoing transfer is committed
// atomically with the state change that justifies it.
package auction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlot/escrowd/internal/models"
)

// Status is the auction lifecycle state. There are exactly two: an auction
// opens when listed and settles exactly once, never the other way around.
type Status string

const (
	StatusOpen    Status = "open"
	StatusSettled Status = "settled"
)

// Auction is one listed item and its bidding state. All fields other than
// HighestBid, HighestBidder and Status are immutable after creation.
//
// An empty HighestBidder means no bid has been accepted yet, and holds
// exactly when HighestBid is zero.
type Auction struct {
	ID              uint64          `json:"id"`
	Seller          string          `json:"seller"`
	ItemReference   string          `json:"item_reference"`
	ItemDescription string          `json:"item_description"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	HighestBid      decimal.Decimal `json:"highest_bid"`
	HighestBidder   string          `json:"highest_bidder,omitempty"`
	EndTime         time.Time       `json:"end_time"`
	CreatedAt       time.Time       `json:"created_at"`
	Status          Status          `json:"status"`
}

// Custody is the external fund-custody primitive. Transfer moves amount out
// of the given auction's escrow to an account, synchronously; a non-nil
// error means no funds moved and the enclosing operation must abort.
type Custody interface {
	Transfer(ctx context.Context, auctionID uint64, to string, amount decimal.Decimal) error
}

// Notifier receives one event per committed transition. Events for a single
// auction are delivered in commit order. Notification failures are logged
// and dropped; they never roll back a committed transition.
type Notifier interface {
	Notify(ctx context.Context, ev models.AuctionEvent) error
}
