package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/models"
)

// StateMachine drives the lifecycle of individual auctions: bid admission,
// refunds to outbid parties, and settlement. Each operation runs under the
// record's lock, reads the clock exactly once, and either commits fully or
// leaves the record untouched.
type StateMachine struct {
	store    *Store
	custody  Custody
	clock    clock.Clock
	notifier Notifier
	log      *zap.Logger
}

// NewStateMachine creates a state machine over the given state table and
// fund-custody collaborator.
func NewStateMachine(store *Store, custody Custody, clk clock.Clock, notifier Notifier, log *zap.Logger) *StateMachine {
	return &StateMachine{
		store:    store,
		custody:  custody,
		clock:    clk,
		notifier: notifier,
		log:      log,
	}
}

// PlaceBid admits a bid against the current high bid. The bidder's payment
// of amount is presumed to already sit in the auction's custody; admission
// is bookkeeping plus the refund of the previously leading bid.
//
// Preconditions are checked in order, first failure wins: the auction must
// exist, the bidding window must still be open, the auction must not be
// settled, the bidder must not be the seller, and the amount must meet the
// starting price (first bid) or strictly exceed the high bid (later bids).
//
// If a previous high bidder exists they are refunded in full before the new
// bid is recorded. A failed refund aborts the whole operation: the record is
// unchanged, ErrTransferFailed surfaces to the caller, and the caller is
// expected to hand the attached payment back to the rejected bidder.
func (sm *StateMachine) PlaceBid(ctx context.Context, id uint64, bidder string, amount decimal.Decimal) (Auction, error) {
	rec, ok := sm.store.find(id)
	if !ok {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrNotFound, id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := sm.clock.Now()
	a := &rec.a

	// The window check comes before the status check: the clock advances
	// independently of when settlement is invoked, so an expired auction
	// rejects bids even while it is still formally open.
	if !now.Before(a.EndTime) {
		return Auction{}, fmt.Errorf("%w: auction %d ended at %s", ErrAuctionClosed, id, a.EndTime.Format(time.RFC3339))
	}
	if a.Status != StatusOpen {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrAlreadySettled, id)
	}
	if bidder == a.Seller {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrSelfBid, id)
	}
	if a.HighestBidder == "" {
		if amount.LessThan(a.StartingPrice) {
			return Auction{}, fmt.Errorf("%w: first bid must be at least the starting price %s", ErrBidTooLow, a.StartingPrice)
		}
	} else if !amount.GreaterThan(a.HighestBid) {
		return Auction{}, fmt.Errorf("%w: current highest bid is %s", ErrBidTooLow, a.HighestBid)
	}

	// Refund-before-accept. This is the one place money moves without an
	// explicit settlement, so it carries the same all-or-nothing rule:
	// the refund and the record update commit together or not at all.
	previous := a.HighestBid
	if a.HighestBidder != "" {
		if err := sm.custody.Transfer(ctx, id, a.HighestBidder, a.HighestBid); err != nil {
			sm.log.Error("refund to outbid bidder failed",
				zap.Uint64("auction_id", id),
				zap.String("bidder", a.HighestBidder),
				zap.String("amount", a.HighestBid.String()),
				zap.Error(err))
			return Auction{}, fmt.Errorf("%w: refunding %s: %v", ErrTransferFailed, a.HighestBidder, err)
		}
	}

	a.HighestBid = amount
	a.HighestBidder = bidder

	sm.log.Info("bid placed",
		zap.Uint64("auction_id", id),
		zap.String("bidder", bidder),
		zap.String("amount", amount.String()),
		zap.String("previous_bid", previous.String()))

	sm.notify(ctx, models.AuctionEvent{
		EventID:     uuid.New().String(),
		AuctionID:   id,
		Type:        models.EventBidPlaced,
		Timestamp:   now,
		Bidder:      bidder,
		Amount:      amount,
		PreviousBid: previous,
	})

	return *a, nil
}

// EndAuction settles an auction whose bidding window has elapsed. Only the
// seller or the current highest bidder may settle; the transition is
// terminal and idempotent in effect, a second call reports ErrAlreadySettled
// and never moves funds again.
//
// The payout to the seller and the status flip commit together: if the
// transfer fails the auction stays open with the funds in custody, so
// settlement can be retried.
func (sm *StateMachine) EndAuction(ctx context.Context, id uint64, caller string) (Auction, error) {
	rec, ok := sm.store.find(id)
	if !ok {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrNotFound, id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := sm.clock.Now()
	a := &rec.a

	if now.Before(a.EndTime) {
		return Auction{}, fmt.Errorf("%w: auction %d ends at %s", ErrAuctionStillOpen, id, a.EndTime.Format(time.RFC3339))
	}
	if a.Status != StatusOpen {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrAlreadySettled, id)
	}
	if caller != a.Seller && (a.HighestBidder == "" || caller != a.HighestBidder) {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrUnauthorized, id)
	}

	var winner *string
	if a.HighestBidder != "" {
		if err := sm.custody.Transfer(ctx, id, a.Seller, a.HighestBid); err != nil {
			sm.log.Error("settlement payout failed, auction left open",
				zap.Uint64("auction_id", id),
				zap.String("seller", a.Seller),
				zap.String("amount", a.HighestBid.String()),
				zap.Error(err))
			return Auction{}, fmt.Errorf("%w: paying seller %s: %v", ErrTransferFailed, a.Seller, err)
		}
		w := a.HighestBidder
		winner = &w
	}

	a.Status = StatusSettled

	if winner != nil {
		sm.log.Info("auction settled",
			zap.Uint64("auction_id", id),
			zap.String("winner", *winner),
			zap.String("amount", a.HighestBid.String()))
	} else {
		sm.log.Info("auction settled without bids", zap.Uint64("auction_id", id))
	}

	sm.notify(ctx, models.AuctionEvent{
		EventID:   uuid.New().String(),
		AuctionID: id,
		Type:      models.EventAuctionEnded,
		Timestamp: now,
		Winner:    winner,
		Amount:    a.HighestBid,
	})

	return *a, nil
}

// notify publishes one event while the record lock is held, so per-auction
// delivery order matches commit order. Publish failures never unwind a
// committed transition.
func (sm *StateMachine) notify(ctx context.Context, ev models.AuctionEvent) {
	if err := sm.notifier.Notify(ctx, ev); err != nil {
		sm.log.Warn("failed to publish auction event",
			zap.Uint64("auction_id", ev.AuctionID),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}
