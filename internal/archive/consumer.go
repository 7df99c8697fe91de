package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/events"
	"github.com/openlot/escrowd/internal/models"
)

// Consumer pulls auction events off the JetStream archival stream and
// persists them. Delivery is at-least-once; the store absorbs replays.
type Consumer struct {
	conn  *nats.Conn
	cc    jetstream.ConsumeContext
	store *Store
	log   *zap.Logger
}

// NewConsumer connects to NATS and binds a durable consumer on the auction
// events stream.
func NewConsumer(natsURL string, store *Store, log *zap.Logger) (*Consumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Consumer{
		conn:  conn,
		store: store,
		log:   log,
	}, nil
}

// Start begins consuming events and blocks until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	js, err := jetstream.New(c.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, events.StreamName, jetstream.ConsumerConfig{
		Durable:       "archiver",
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: events.SubjectPrefix + ".*",
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.cc = cc

	c.log.Info("consuming auction events",
		zap.String("stream", events.StreamName),
		zap.String("subjects", events.SubjectPrefix+".*"))

	<-ctx.Done()
	return nil
}

// handleMessage persists a single auction event.
func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var ev models.AuctionEvent
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		c.log.Error("failed to unmarshal event, dropping", zap.Error(err))
		// A malformed event will never parse; acking keeps it from
		// being redelivered forever.
		msg.Ack()
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	switch ev.Type {
	case models.EventAuctionCreated:
		err = c.store.RecordCreated(dbCtx, &ev)
	case models.EventBidPlaced:
		err = c.store.RecordBid(dbCtx, &ev)
	case models.EventAuctionEnded:
		err = c.store.RecordSettlement(dbCtx, &ev)
	default:
		c.log.Warn("unknown event type, dropping",
			zap.String("type", string(ev.Type)),
			zap.String("event_id", ev.EventID))
		msg.Ack()
		return
	}

	if err != nil {
		c.log.Error("failed to persist auction event",
			zap.String("event_id", ev.EventID),
			zap.Uint64("auction_id", ev.AuctionID),
			zap.Error(err))
		msg.Nak()
		return
	}

	c.log.Info("archived auction event",
		zap.String("event_id", ev.EventID),
		zap.Uint64("auction_id", ev.AuctionID),
		zap.String("type", string(ev.Type)))
	msg.Ack()
}

// Close stops consumption and closes the NATS connection.
func (c *Consumer) Close() error {
	if c.cc != nil {
		c.cc.Stop()
	}
	c.conn.Close()
	return nil
}
