package auction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/models"
)

// CreateParams are the listing parameters for a new auction.
type CreateParams struct {
	Seller          string
	ItemReference   string
	ItemDescription string
	StartingPrice   decimal.Decimal
	Duration        time.Duration
}

// Registry owns auction creation, identifier assignment and read access.
// Identifiers come from a registry-owned counter that only ever advances,
// and only on successful creation; failed creations are rejected before an
// id is allocated, so ids are dense as well as monotonic.
type Registry struct {
	store    *Store
	clock    clock.Clock
	notifier Notifier
	log      *zap.Logger

	mu     sync.Mutex
	nextID uint64
}

// NewRegistry creates a registry over the given state table.
func NewRegistry(store *Store, clk clock.Clock, notifier Notifier, log *zap.Logger) *Registry {
	return &Registry{
		store:    store,
		clock:    clk,
		notifier: notifier,
		log:      log,
	}
}

// Create lists a new item for sale and returns the stored auction.
// The bidding window is [now, now+Duration); the end time is fixed at
// creation and never moves.
func (r *Registry) Create(ctx context.Context, p CreateParams) (Auction, error) {
	if p.Seller == "" {
		return Auction{}, fmt.Errorf("%w: seller is required", ErrInvalidParameter)
	}
	if !p.StartingPrice.IsPositive() {
		return Auction{}, fmt.Errorf("%w: starting price must be positive", ErrInvalidParameter)
	}
	if p.Duration <= 0 {
		return Auction{}, fmt.Errorf("%w: duration must be positive", ErrInvalidParameter)
	}

	now := r.clock.Now()

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	a := Auction{
		ID:              id,
		Seller:          p.Seller,
		ItemReference:   p.ItemReference,
		ItemDescription: p.ItemDescription,
		StartingPrice:   p.StartingPrice,
		HighestBid:      decimal.Zero,
		EndTime:         now.Add(p.Duration),
		CreatedAt:       now,
		Status:          StatusOpen,
	}
	r.store.insert(a)

	r.log.Info("auction created",
		zap.Uint64("auction_id", a.ID),
		zap.String("seller", a.Seller),
		zap.String("starting_price", a.StartingPrice.String()),
		zap.Time("end_time", a.EndTime))

	endTime := a.EndTime
	ev := models.AuctionEvent{
		EventID:       uuid.New().String(),
		AuctionID:     a.ID,
		Type:          models.EventAuctionCreated,
		Timestamp:     now,
		Seller:        a.Seller,
		ItemReference: a.ItemReference,
		StartingPrice: a.StartingPrice,
		EndTime:       &endTime,
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.log.Warn("failed to publish auction_created event",
			zap.Uint64("auction_id", a.ID), zap.Error(err))
	}

	return a, nil
}

// Get returns an immutable copy of the auction's current fields.
func (r *Registry) Get(ctx context.Context, id uint64) (Auction, error) {
	a, ok := r.store.snapshot(id)
	if !ok {
		return Auction{}, fmt.Errorf("%w: auction %d", ErrNotFound, id)
	}
	return a, nil
}
