package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is an archived bid row as stored by the archival worker.
type Bid struct {
	EventID     string          `json:"event_id"`
	AuctionID   uint64          `json:"auction_id"`
	Bidder      string          `json:"bidder"`
	Amount      decimal.Decimal `json:"amount"`
	PreviousBid decimal.Decimal `json:"previous_bid"`
	PlacedAt    time.Time       `json:"placed_at"`
}
