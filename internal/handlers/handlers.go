package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/auction"
	"github.com/openlot/escrowd/internal/ledger"
	"github.com/openlot/escrowd/internal/models"
)

// Handler contains the HTTP request handlers for the auction service.
type Handler struct {
	registry *auction.Registry
	machine  *auction.StateMachine
	vault    *ledger.Vault
	log      *zap.Logger
}

// New creates a new HTTP handler.
func New(registry *auction.Registry, machine *auction.StateMachine, vault *ledger.Vault, log *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		machine:  machine,
		vault:    vault,
		log:      log,
	}
}

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions", h.CreateAuction).Methods("POST")
	api.HandleFunc("/auctions/{id}", h.GetAuction).Methods("GET")
	api.HandleFunc("/auctions/{id}/bids", h.PlaceBid).Methods("POST")
	api.HandleFunc("/auctions/{id}/end", h.EndAuction).Methods("POST")
	api.HandleFunc("/accounts/{id}/deposit", h.DepositFunds).Methods("POST")
	api.HandleFunc("/accounts/{id}/balance", h.GetBalance).Methods("GET")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "escrowd",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateAuction lists a new item for sale.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.registry.Create(r.Context(), auction.CreateParams{
		Seller:          req.Seller,
		ItemReference:   req.ItemReference,
		ItemDescription: req.ItemDescription,
		StartingPrice:   req.StartingPrice,
		Duration:        time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		respondAuctionError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, a)
}

// GetAuction returns a snapshot of the auction's current state.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	a, err := h.registry.Get(r.Context(), id)
	if err != nil {
		respondAuctionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// PlaceBid handles bid placement. The bid amount is the attached payment:
// it moves into the auction's custody before admission is attempted, and
// moves straight back to the bidder if the bid is rejected.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Bidder == "" {
		respondError(w, http.StatusBadRequest, "Bidder is required")
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	ctx := r.Context()
	if err := h.vault.Escrow(ctx, id, req.Bidder, req.Amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			respondError(w, http.StatusPaymentRequired, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to escrow payment")
		return
	}

	a, err := h.machine.PlaceBid(ctx, id, req.Bidder, req.Amount)
	if err != nil {
		// Rejected bid: hand the attached payment back.
		if rerr := h.vault.Transfer(ctx, id, req.Bidder, req.Amount); rerr != nil {
			h.log.Error("failed to return rejected bid deposit",
				zap.Uint64("auction_id", id),
				zap.String("bidder", req.Bidder),
				zap.Error(rerr))
		}
		respondAuctionError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, a)
}

// EndAuction settles an expired auction.
func (h *Handler) EndAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	var req models.EndAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Caller == "" {
		respondError(w, http.StatusBadRequest, "Caller is required")
		return
	}

	a, err := h.machine.EndAuction(r.Context(), id, req.Caller)
	if err != nil {
		respondAuctionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// DepositFunds credits an account in the vault so it can cover bids.
func (h *Handler) DepositFunds(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["id"]
	if account == "" {
		respondError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.vault.Deposit(account, req.Amount); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"account": account,
		"balance": h.vault.Balance(account).String(),
	})
}

// GetBalance returns an account's free balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["id"]
	if account == "" {
		respondError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"account": account,
		"balance": h.vault.Balance(account).String(),
	})
}

// auctionID parses the id path variable, responding with 400 on garbage.
func auctionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "Invalid auction ID")
		return 0, false
	}
	return id, true
}

// respondAuctionError maps the core's error taxonomy onto HTTP status codes.
func respondAuctionError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, auction.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, auction.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, auction.ErrAuctionStillOpen),
		errors.Is(err, auction.ErrAlreadySettled),
		errors.Is(err, auction.ErrSelfBid),
		errors.Is(err, auction.ErrBidTooLow):
		status = http.StatusConflict
	case errors.Is(err, auction.ErrTransferFailed):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	respondError(w, status, err.Error())
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// loggingMiddleware logs all HTTP requests.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Duration("duration", time.Since(start)))
	})
}

// corsMiddleware adds CORS headers (for development).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
