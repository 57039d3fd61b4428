package store

import (
	"context"
	"database/sql"

	"commerce-core/internal/models"
)

// OrderByID retrieves an order by ID
func (s *Store) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderByIdempotencyKey retrieves an order by idempotency key, or nil when
// the key has not been seen.
func (s *Store) OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderLines retrieves all lines for an order
func (s *Store) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY product_id", orderID)
	return lines, err
}

// OrdersByBuyer retrieves a buyer's orders, newest first, optionally
// filtered by status.
func (s *Store) OrdersByBuyer(ctx context.Context, buyerID int64, status string) ([]models.Order, error) {
	var orders []models.Order
	if status != "" {
		err := s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE buyer_id = $1 AND status = $2 ORDER BY created_at DESC",
			buyerID, status)
		return orders, err
	}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return orders, err
}

// TransactionsByOrder retrieves payment attempts for an order, newest first.
func (s *Store) TransactionsByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.SelectContext(ctx, &txns,
		"SELECT * FROM transactions WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return txns, err
}

// UpdateDeliveryAddress updates the one mutable free-form order field.
func (s *Store) UpdateDeliveryAddress(ctx context.Context, orderID int64, address string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET delivery_address = $1, updated_at = NOW() WHERE id = $2",
		address, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}
