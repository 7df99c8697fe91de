package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/raulk/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/auction"
	"github.com/openlot/escrowd/internal/events"
	"github.com/openlot/escrowd/internal/handlers"
	"github.com/openlot/escrowd/internal/ledger"
)

type fixture struct {
	router *mux.Router
	clk    *clock.Mock
	vault  *ledger.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	clk := clock.NewMock()
	vault := ledger.NewVault(log)
	store := auction.NewStore()
	registry := auction.NewRegistry(store, clk, events.Nop{}, log)
	machine := auction.NewStateMachine(store, vault, clk, events.Nop{}, log)
	handler := handlers.New(registry, machine, vault, log)
	return &fixture{
		router: handler.SetupRoutes(),
		clk:    clk,
		vault:  vault,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createAuction(t *testing.T, seller string, price int64, durationSeconds int64) auction.Auction {
	t.Helper()
	rec := f.do(t, "POST", "/api/v1/auctions", map[string]interface{}{
		"seller":           seller,
		"item_reference":   "lot-7",
		"item_description": "a painting",
		"starting_price":   price,
		"duration_seconds": durationSeconds,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a auction.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	return a
}

func (f *fixture) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	rec := f.do(t, "POST", "/api/v1/accounts/"+account+"/deposit", map[string]interface{}{
		"amount": amount,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAuction(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)

	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, "alice", a.Seller)
	assert.Equal(t, auction.StatusOpen, a.Status)
	assert.True(t, a.StartingPrice.Equal(decimal.NewFromInt(100)))
}

func TestCreateAuctionInvalid(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/v1/auctions", map[string]interface{}{
		"seller":           "alice",
		"starting_price":   0,
		"duration_seconds": 60,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/v1/auctions", map[string]interface{}{
		"seller":           "alice",
		"starting_price":   100,
		"duration_seconds": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAuction(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)

	rec := f.do(t, "GET", fmt.Sprintf("/api/v1/auctions/%d", a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got auction.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, auction.StatusOpen, got.Status)
}

func TestGetAuctionNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/v1/auctions/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAuctionBadID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/v1/auctions/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBid(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)
	f.fund(t, "bob", 1000)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "bob",
		"amount": 150,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got auction.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "bob", got.HighestBidder)
	assert.True(t, got.HighestBid.Equal(decimal.NewFromInt(150)))

	// The attached payment sits in custody.
	assert.True(t, f.vault.Balance("bob").Equal(decimal.NewFromInt(850)))
	assert.True(t, f.vault.HeldFor(a.ID).Equal(decimal.NewFromInt(150)))
}

func TestPlaceBidInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)
	f.fund(t, "bob", 50)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "bob",
		"amount": 150,
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.True(t, f.vault.Balance("bob").Equal(decimal.NewFromInt(50)))
}

func TestPlaceBidTooLowReturnsDeposit(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)
	f.fund(t, "bob", 1000)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "bob",
		"amount": 50,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The rejected bid's payment went straight back.
	assert.True(t, f.vault.Balance("bob").Equal(decimal.NewFromInt(1000)))
	assert.True(t, f.vault.HeldFor(a.ID).IsZero())
}

func TestPlaceBidSelfBid(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)
	f.fund(t, "alice", 1000)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "alice",
		"amount": 150,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlaceBidValidation(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"amount": 150,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing bidder")

	rec = f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "bob",
		"amount": -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-positive amount")
}

func TestEndAuctionFlow(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)
	f.fund(t, "bob", 1000)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "bob",
		"amount": 150,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Too early.
	rec = f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/end", a.ID), map[string]interface{}{
		"caller": "alice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	f.clk.Add(61 * time.Second)

	// Wrong caller.
	rec = f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/end", a.ID), map[string]interface{}{
		"caller": "mallory",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Seller settles.
	rec = f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/end", a.ID), map[string]interface{}{
		"caller": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var settled auction.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settled))
	assert.Equal(t, auction.StatusSettled, settled.Status)
	assert.True(t, f.vault.Balance("alice").Equal(decimal.NewFromInt(150)))

	// Settling again conflicts.
	rec = f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/end", a.ID), map[string]interface{}{
		"caller": "alice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBidAfterExpiry(t *testing.T) {
	f := newFixture(t)
	a := f.createAuction(t, "alice", 100, 60)
	f.fund(t, "bob", 1000)
	f.clk.Add(2 * time.Minute)

	rec := f.do(t, "POST", fmt.Sprintf("/api/v1/auctions/%d/bids", a.ID), map[string]interface{}{
		"bidder": "bob",
		"amount": 150,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, f.vault.Balance("bob").Equal(decimal.NewFromInt(1000)))
}

func TestBalanceEndpoint(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "bob", 250)

	rec := f.do(t, "GET", "/api/v1/accounts/bob/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "250", body["balance"])
}
