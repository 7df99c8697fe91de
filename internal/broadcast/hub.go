package broadcast

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one websocket connection watching a single auction.
type Client struct {
	ID        string
	AuctionID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub tracks which clients watch which auction and fans events out to them.
// All map access happens on the Run goroutine, so no locking is needed.
type Hub struct {
	watchers map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	events     chan Message
	counts     chan countRequest

	log *zap.Logger
}

type countRequest struct {
	auctionID string
	reply     chan int
}

// NewHub creates a hub; call Run in a goroutine before registering clients.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		watchers:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Message, 256),
		counts:     make(chan countRequest),
		log:        log,
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.events:
			h.fanOut(msg)
		case req := <-h.counts:
			req.reply <- len(h.watchers[req.auctionID])
		}
	}
}

// Register adds a client and starts its write pump.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client and closes its connection.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues an event for delivery to the auction's watchers.
func (h *Hub) Broadcast(msg Message) {
	h.events <- msg
}

// WatcherCount reports how many clients are watching an auction.
func (h *Hub) WatcherCount(auctionID string) int {
	reply := make(chan int, 1)
	h.counts <- countRequest{auctionID: auctionID, reply: reply}
	return <-reply
}

func (h *Hub) addClient(client *Client) {
	set, ok := h.watchers[client.AuctionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.watchers[client.AuctionID] = set
	}
	set[client] = struct{}{}

	h.log.Info("client watching auction",
		zap.String("client_id", client.ID),
		zap.String("auction_id", client.AuctionID))

	go client.writePump()
}

func (h *Hub) removeClient(client *Client) {
	set, ok := h.watchers[client.AuctionID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.watchers, client.AuctionID)
	}

	close(client.Send)
	client.Conn.Close()

	h.log.Info("client stopped watching auction",
		zap.String("client_id", client.ID),
		zap.String("auction_id", client.AuctionID))
}

func (h *Hub) fanOut(msg Message) {
	for client := range h.watchers[msg.AuctionID] {
		select {
		case client.Send <- msg.Payload:
		default:
			// Send buffer full: drop the client rather than let one
			// slow reader stall everyone else.
			h.removeClient(client)
		}
	}
}

// writePump pumps messages from the Send channel to the websocket
// connection, with periodic pings to keep it alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection to detect disconnects and keep pong
// deadlines fresh; client input is otherwise ignored.
func (c *Client) readPump(hub *Hub, log *zap.Logger) {
	defer hub.Unregister(c)

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}
	}
}
