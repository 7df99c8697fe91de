package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies what happened to an auction.
type EventType string

const (
	EventAuctionCreated EventType = "auction_created"
	EventBidPlaced      EventType = "bid_placed"
	EventAuctionEnded   EventType = "auction_ended"
)

// AuctionEvent is the notification envelope published for every committed
// auction transition. It is sent to:
// 1. Redis Pub/Sub (for real-time WebSocket broadcast)
// 2. NATS JetStream (for archival to PostgreSQL)
//
// Events are published in commit order per auction; consumers may rely on
// that ordering within a single auction id but not across auctions.
type AuctionEvent struct {
	EventID   string    `json:"event_id"`
	AuctionID uint64    `json:"auction_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Set for auction_created events.
	Seller        string          `json:"seller,omitempty"`
	ItemReference string          `json:"item_reference,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndTime       *time.Time      `json:"end_time,omitempty"`

	// Set for bid_placed events.
	Bidder      string          `json:"bidder,omitempty"`
	PreviousBid decimal.Decimal `json:"previous_bid"`

	// Set for auction_ended events. Winner is nil when the auction closed
	// without a single bid.
	Winner *string `json:"winner,omitempty"`

	// Bid amount for bid_placed, hammer amount for auction_ended.
	Amount decimal.Decimal `json:"amount"`
}
