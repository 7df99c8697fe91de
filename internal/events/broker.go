// Package events delivers auction notifications to external observers over
// two paths: Redis Pub/Sub for real-time WebSocket broadcast and NATS
// JetStream for durable archival. Notifications are observability, not
// correctness; the auction core logs and drops publish failures.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/models"
)

const (
	// StreamName is the JetStream stream holding auction events for the
	// archival worker.
	StreamName = "AUCTION_EVENTS"

	// SubjectPrefix scopes JetStream subjects; the full subject is
	// "auction.events.<auction_id>".
	SubjectPrefix = "auction.events"

	// ChannelPrefix scopes Redis Pub/Sub channels; the full channel is
	// "auction_events:<auction_id>".
	ChannelPrefix = "auction_events"
)

// Subject returns the JetStream subject for one auction's events.
func Subject(auctionID uint64) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, auctionID)
}

// Channel returns the Redis Pub/Sub channel for one auction's events.
func Channel(auctionID uint64) string {
	return fmt.Sprintf("%s:%d", ChannelPrefix, auctionID)
}

// Broker publishes each event to Redis Pub/Sub and then to JetStream.
// The auction core calls Notify while holding the record lock, so events
// for a single auction reach both paths in commit order.
type Broker struct {
	redis *redis.Client
	js    jetstream.JetStream
	log   *zap.Logger
}

// NewBroker creates a broker and ensures the archival stream exists.
func NewBroker(ctx context.Context, rdb *redis.Client, natsConn *nats.Conn, log *zap.Logger) (*Broker, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(streamCtx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Stream for auction events archival",
		Subjects:    []string{SubjectPrefix + ".*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	log.Info("jetstream stream ready", zap.String("stream", StreamName))

	return &Broker{redis: rdb, js: js, log: log}, nil
}

// Notify implements auction.Notifier.
func (b *Broker) Notify(ctx context.Context, ev models.AuctionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redis.Publish(ctx, Channel(ev.AuctionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	// JetStream publish waits for the server ack, so the event is
	// persisted before the next event for this auction can be emitted.
	ack, err := b.js.Publish(ctx, Subject(ev.AuctionID), data)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	b.log.Debug("published auction event",
		zap.Uint64("auction_id", ev.AuctionID),
		zap.String("type", string(ev.Type)),
		zap.Uint64("stream_seq", ack.Sequence))
	return nil
}

// Nop is a publisher that drops every event. Used where no observer
// infrastructure is wired, such as tests of the auction core's callers.
type Nop struct{}

// Notify implements auction.Notifier.
func (Nop) Notify(context.Context, models.AuctionEvent) error { return nil }
