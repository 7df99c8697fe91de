// Package broadcast fans committed auction events out to websocket
// watchers. Events arrive over Redis Pub/Sub from the auction service and
// are forwarded verbatim to every client watching that auction.
package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/events"
)

// Message is one auction event as received from Redis.
type Message struct {
	AuctionID string
	Payload   []byte
}

// Subscriber wraps the Redis Pub/Sub subscription feeding the hub.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
	log    *zap.Logger
}

// NewSubscriber connects to Redis.
func NewSubscriber(addr, password string, db int, log *zap.Logger) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{client: rdb, log: log}, nil
}

// Subscribe starts a pattern subscription covering every auction's channel.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, events.ChannelPrefix+":*")
	return nil
}

// Listen forwards incoming events to out until the context is cancelled.
// Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, out chan<- Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			auctionID := auctionIDFromChannel(msg.Channel)
			if auctionID == "" {
				s.log.Warn("event on unexpected channel", zap.String("channel", msg.Channel))
				continue
			}
			out <- Message{
				AuctionID: auctionID,
				Payload:   []byte(msg.Payload),
			}
		}
	}
}

// auctionIDFromChannel extracts the auction id from a channel name like
// "auction_events:42".
func auctionIDFromChannel(channel string) string {
	id, ok := strings.CutPrefix(channel, events.ChannelPrefix+":")
	if !ok {
		return ""
	}
	return id
}

// Close tears down the subscription and the Redis connection.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
