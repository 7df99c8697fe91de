package models

import "github.com/shopspring/decimal"

// CreateAuctionRequest is the incoming listing request from the API.
type CreateAuctionRequest struct {
	Seller          string          `json:"seller"`
	ItemReference   string          `json:"item_reference"`
	ItemDescription string          `json:"item_description"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	DurationSeconds int64           `json:"duration_seconds"`
}

// BidRequest carries a bid plus the attached payment amount. The full amount
// is moved into auction custody before admission is attempted, and returned
// to the bidder if the bid is rejected.
type BidRequest struct {
	Bidder string          `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
}

// EndAuctionRequest identifies who is asking to settle.
type EndAuctionRequest struct {
	Caller string `json:"caller"`
}

// DepositRequest funds an account held by the vault.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
