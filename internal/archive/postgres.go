package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/openlot/escrowd/internal/models"
)

// Store wraps the PostgreSQL connection holding the archived auction
// history. The in-process state table stays authoritative; this archive is
// the durable, queryable record built from the event stream.
type Store struct {
	db *sql.DB
}

// NewStore creates a PostgreSQL-backed archive store.
func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// InitSchema creates the necessary database tables.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS auctions (
		id BIGINT PRIMARY KEY,
		seller TEXT NOT NULL,
		item_reference TEXT,
		starting_price NUMERIC(20, 2) NOT NULL,
		highest_bid NUMERIC(20, 2) NOT NULL DEFAULT 0,
		highest_bidder TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		end_time TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		event_id TEXT PRIMARY KEY,
		auction_id BIGINT NOT NULL,
		bidder TEXT NOT NULL,
		amount NUMERIC(20, 2) NOT NULL,
		previous_bid NUMERIC(20, 2) NOT NULL DEFAULT 0,
		placed_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settlements (
		event_id TEXT PRIMARY KEY,
		auction_id BIGINT NOT NULL UNIQUE,
		winner TEXT,
		amount NUMERIC(20, 2) NOT NULL,
		settled_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bids_auction_id ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids(bidder);
	CREATE INDEX IF NOT EXISTS idx_bids_placed_at ON bids(placed_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordCreated inserts the auction row for an auction_created event.
func (s *Store) RecordCreated(ctx context.Context, ev *models.AuctionEvent) error {
	query := `
		INSERT INTO auctions (id, seller, item_reference, starting_price, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	var endTime time.Time
	if ev.EndTime != nil {
		endTime = *ev.EndTime
	}

	_, err := s.db.ExecContext(ctx, query,
		ev.AuctionID, ev.Seller, ev.ItemReference, ev.StartingPrice, endTime, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// RecordBid inserts the bid row and advances the auction's high-water mark.
// Replayed events are absorbed by the event-id primary key.
func (s *Store) RecordBid(ctx context.Context, ev *models.AuctionEvent) error {
	insert := `
		INSERT INTO bids (event_id, auction_id, bidder, amount, previous_bid, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert,
		ev.EventID, ev.AuctionID, ev.Bidder, ev.Amount, ev.PreviousBid, ev.Timestamp); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	update := `
		UPDATE auctions
		SET highest_bid = $1,
		    highest_bidder = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND highest_bid < $1
	`
	if _, err := s.db.ExecContext(ctx, update, ev.Amount, ev.Bidder, ev.AuctionID); err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	return nil
}

// RecordSettlement inserts the settlement row and marks the auction settled.
func (s *Store) RecordSettlement(ctx context.Context, ev *models.AuctionEvent) error {
	insert := `
		INSERT INTO settlements (event_id, auction_id, winner, amount, settled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auction_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert,
		ev.EventID, ev.AuctionID, ev.Winner, ev.Amount, ev.Timestamp); err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	update := `
		UPDATE auctions
		SET status = 'settled',
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, update, ev.AuctionID); err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	return nil
}

// GetBidHistory retrieves the bid history for an auction, newest first.
func (s *Store) GetBidHistory(ctx context.Context, auctionID uint64, limit int) ([]*models.Bid, error) {
	query := `
		SELECT event_id, auction_id, bidder, amount, previous_bid, placed_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY placed_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid := &models.Bid{}
		err := rows.Scan(
			&bid.EventID,
			&bid.AuctionID,
			&bid.Bidder,
			&bid.Amount,
			&bid.PreviousBid,
			&bid.PlacedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
