package broadcast

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development (use proper CORS in production)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler exposes the websocket endpoint for watching auctions.
type Handler struct {
	hub *Hub
	log *zap.Logger
}

// NewHandler creates a websocket handler over the given hub.
func NewHandler(hub *Hub, log *zap.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

// SetupRoutes configures the broadcast service routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws/auctions/{id}", h.WatchAuction)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/stats/auctions/{id}", h.GetStats).Methods("GET")

	return router
}

// WatchAuction upgrades the connection and subscribes it to one auction's
// event feed.
func (h *Handler) WatchAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]
	if auctionID == "" {
		http.Error(w, "Auction ID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.readPump(h.hub, h.log)

	welcome := fmt.Sprintf(`{"type":"watching","auction_id":%q,"client_id":%q}`, auctionID, client.ID)
	client.Send <- []byte(welcome)
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"broadcaster"}`)
}

// GetStats returns the watcher count for an auction.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]
	count := h.hub.WatcherCount(auctionID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"auction_id":%q,"watchers":%d}`, auctionID, count)
}
