package orderstore

import (
	"time"

	"github.com/linkora-dex/backend/internal/model"
)

// OrdersByStatus returns a page of orders in a given status (or every
// status when status is empty), newest first, for the Query API's
// /orders/pending, /orders/executed, /orders/cancelled, and /orders/all
// endpoints.
func (s *Store) OrdersByStatus(status model.OrderStatus, limit, offset int) ([]model.Order, error) {
	limit = clampLimit(limit, 1000)
	q := s.db.Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []model.Order
	err := q.Find(&orders).Error
	return orders, err
}

// OrdersByUser returns a page of orders for one user address, optionally
// filtered by status.
func (s *Store) OrdersByUser(address string, status model.OrderStatus, limit, offset int) ([]model.Order, error) {
	limit = clampLimit(limit, 1000)
	q := s.db.Where("user_address = ?", address).Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []model.Order
	err := q.Find(&orders).Error
	return orders, err
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return 100
	}
	if limit > max {
		return max
	}
	return limit
}

// StatusCount is one row of the /statistics response.
type StatusCount struct {
	Total   int64
	Last24h int64
}

// Statistics computes per-status totals and last-24h counts for the
// /statistics endpoint.
func (s *Store) Statistics() (map[model.OrderStatus]StatusCount, error) {
	statuses := []model.OrderStatus{model.StatusPending, model.StatusExecuted, model.StatusCancelled}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	out := make(map[model.OrderStatus]StatusCount, len(statuses))
	for _, st := range statuses {
		var total, recent int64
		if err := s.db.Model(&model.Order{}).Where("status = ?", st).Count(&total).Error; err != nil {
			return nil, err
		}
		if err := s.db.Model(&model.Order{}).
			Where("status = ? AND created_at >= ?", st, cutoff).
			Count(&recent).Error; err != nil {
			return nil, err
		}
		out[st] = StatusCount{Total: total, Last24h: recent}
	}
	return out, nil
}

// Ping verifies the connection is reachable, for the /health endpoint.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
