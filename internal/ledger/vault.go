// Package ledger provides the fund-custody collaborator: account balances
// plus per-auction escrow. The auction core only ever moves money through
// this package, and every movement is synchronous and exact.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInsufficientFunds is returned when an account cannot cover an
	// escrow deposit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientCustody is returned when an outgoing transfer asks
	// for more than the auction's escrow holds. The auction core never
	// triggers this when its custody invariant holds.
	ErrInsufficientCustody = errors.New("insufficient funds in custody")
)

// Vault is an in-memory custody ledger. Account balances and per-auction
// escrow balances always sum to the total ever deposited; no operation
// creates or destroys money.
type Vault struct {
	mu       sync.Mutex
	accounts map[string]decimal.Decimal
	held     map[uint64]decimal.Decimal
	log      *zap.Logger
}

// NewVault creates an empty vault.
func NewVault(log *zap.Logger) *Vault {
	return &Vault{
		accounts: make(map[string]decimal.Decimal),
		held:     make(map[uint64]decimal.Decimal),
		log:      log,
	}
}

// Deposit credits an account from outside the system.
func (v *Vault) Deposit(account string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive, got %s", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[account] = v.accounts[account].Add(amount)
	return nil
}

// Balance returns the free (non-escrowed) balance of an account.
func (v *Vault) Balance(account string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accounts[account]
}

// HeldFor returns the amount currently escrowed for an auction.
func (v *Vault) HeldFor(auctionID uint64) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.held[auctionID]
}

// Escrow moves amount from an account into the auction's custody. This is
// the "attached payment" leg of a bid: it happens before admission, and the
// caller is responsible for transferring it back if the bid is rejected.
func (v *Vault) Escrow(ctx context.Context, auctionID uint64, from string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("escrow amount must be positive, got %s", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	balance := v.accounts[from]
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s holds %s, needs %s", ErrInsufficientFunds, from, balance, amount)
	}
	v.accounts[from] = balance.Sub(amount)
	v.held[auctionID] = v.held[auctionID].Add(amount)

	v.log.Debug("escrowed funds",
		zap.Uint64("auction_id", auctionID),
		zap.String("from", from),
		zap.String("amount", amount.String()))
	return nil
}

// Transfer moves amount out of the auction's custody to an account: a refund
// to an outbid bidder, the settlement payout to the seller, or the return of
// a rejected bid's deposit. A failure moves nothing.
func (v *Vault) Transfer(ctx context.Context, auctionID uint64, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	held := v.held[auctionID]
	if held.LessThan(amount) {
		return fmt.Errorf("%w: auction %d holds %s, needs %s", ErrInsufficientCustody, auctionID, held, amount)
	}
	v.held[auctionID] = held.Sub(amount)
	v.accounts[to] = v.accounts[to].Add(amount)

	v.log.Debug("transferred funds from custody",
		zap.Uint64("auction_id", auctionID),
		zap.String("to", to),
		zap.String("amount", amount.String()))
	return nil
}
