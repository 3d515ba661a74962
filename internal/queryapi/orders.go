package queryapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/linkora-dex/backend/internal/model"
)

func (s *Server) handleOrdersByFixedStatus(status model.OrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeOrdersPage(w, r, status)
	}
}

func (s *Server) handleOrdersAll(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	s.writeOrdersPage(w, r, status)
}

func (s *Server) writeOrdersPage(w http.ResponseWriter, r *http.Request, status model.OrderStatus) {
	q := r.URL.Query()
	limit := parseIntParam(q, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	offset := parseIntParam(q, "offset", 0)

	orders, err := s.Store.OrdersByStatus(status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders, "limit": limit, "offset": offset})
}

// handleUserOrders serves GET /users/{address}/orders?status=?.
func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "orders" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	address := parts[0]

	q := r.URL.Query()
	limit := parseIntParam(q, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	offset := parseIntParam(q, "offset", 0)
	status := model.OrderStatus(q.Get("status"))

	orders, err := s.Store.OrdersByUser(address, status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders, "limit": limit, "offset": offset})
}

// handleOrderPath serves GET /orders/{id} and GET /orders/{id}/events.
func (s *Server) handleOrderPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/orders/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch len(parts) {
	case 1:
		order, err := s.Store.GetOrder(nil, id)
		if err != nil {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeJSON(w, http.StatusOK, order)

	case 2:
		if parts[1] != "events" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		events, err := s.Store.OrderEvents(nil, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, events)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.Statistics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
