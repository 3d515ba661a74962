// Package queryapi implements the Query API (C10): the read-only HTTP
// surface over persisted market data and projected orders described in
// SPEC_FULL.md §6.
//
// Grounded on internal/gateway/handlers.go's RegisterRoutes/SetCORS
// pattern, generalized from the teacher's single indicator-gateway mux into
// this domain's market-data and order routes, reading through
// orderstore.Store instead of Redis streams.
package queryapi

import (
	"net/http"

	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/orderstore"
	"github.com/linkora-dex/backend/internal/registry"
)

// Server wires the Order State Store and, when this process also runs the
// Fan-out Hub, the Subscription Registry into the HTTP routes below. Reg may
// be nil — GET /candles and GET /price then serve from persisted rows only,
// without live-bucket hydration.
type Server struct {
	Store *orderstore.Store
	Reg   *registry.Registry
}

// NewServer builds a Server.
func NewServer(store *orderstore.Store, reg *registry.Registry) *Server {
	return &Server{Store: store, Reg: reg}
}

// RegisterRoutes mounts every Query API route on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/symbols", s.handleSymbols)
	mux.HandleFunc("/candles", s.handleCandles)
	mux.HandleFunc("/orderbook", s.handleOrderbook)
	mux.HandleFunc("/price", s.handlePrice)

	mux.HandleFunc("/orders/pending", s.handleOrdersByFixedStatus(model.StatusPending))
	mux.HandleFunc("/orders/executed", s.handleOrdersByFixedStatus(model.StatusExecuted))
	mux.HandleFunc("/orders/cancelled", s.handleOrdersByFixedStatus(model.StatusCancelled))
	mux.HandleFunc("/orders/all", s.handleOrdersAll)
	mux.HandleFunc("/orders/", s.handleOrderPath)
	mux.HandleFunc("/users/", s.handleUserOrders)
	mux.HandleFunc("/statistics", s.handleStatistics)
}
