package store

import (
	"context"
	"database/sql"
	"fmt"

	"commerce-core/internal/models"

	"github.com/jmoiron/sqlx"
)

// Tx is the transaction-scoped store handed to workflow callbacks by InTx.
// Locking reads hold their row locks until InTx commits or rolls back.
type Tx struct {
	tx *sqlx.Tx
}

// ProductForUpdate locks the product row for the rest of the transaction.
func (t *Tx) ProductForUpdate(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %d", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return &product, nil
}

// UpdateProductStock writes the availability and purchasability computed by
// the ledger for a row already locked with ProductForUpdate.
func (t *Tx) UpdateProductStock(ctx context.Context, productID int64, available int, purchasable bool) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET available_quantity = $1, is_purchasable = $2, updated_at = NOW() WHERE id = $3",
		available, purchasable, productID)
	return err
}

// InsertOrder creates a new order header
func (t *Tx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (buyer_id, total_amount, status, delivery_address, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return t.tx.GetContext(ctx, order, query,
		order.BuyerID, order.TotalAmount, order.Status, order.DeliveryAddress, order.IdempotencyKey)
}

// InsertOrderLine creates a new order line
func (t *Tx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price_at_purchase)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, line, query,
		line.OrderID, line.ProductID, line.Quantity, line.UnitPriceAtPurchase)
}

// OrderForUpdate locks the order row, serializing concurrent payment
// attempts against the same order.
func (t *Tx) OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return &order, nil
}

// UpdateOrderStatus updates order status
func (t *Tx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// OrderLines retrieves all lines for an order within the transaction
func (t *Tx) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := t.tx.SelectContext(ctx, &lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY product_id", orderID)
	return lines, err
}

// DeleteCartLines removes only the snapshotted (buyer, product) pairs.
// Lines added concurrently during the workflow survive.
func (t *Tx) DeleteCartLines(ctx context.Context, buyerID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM cart_lines WHERE buyer_id = ? AND product_id IN (?)", buyerID, productIDs)
	if err != nil {
		return err
	}
	query = t.tx.Rebind(query)

	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}

// InsertTransaction creates a new payment transaction record
func (t *Tx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (order_id, amount, payment_method, status, provider_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return t.tx.GetContext(ctx, txn, query,
		txn.OrderID, txn.Amount, txn.PaymentMethod, txn.Status, txn.ProviderRef)
}

// TransactionForUpdate locks the transaction row for the refund workflow.
func (t *Tx) TransactionForUpdate(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := t.tx.GetContext(ctx, &txn,
		"SELECT * FROM transactions WHERE id = $1 FOR UPDATE", transactionID)
	if err == sql.ErrNoRows {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction %d: %w", transactionID, err)
	}
	return &txn, nil
}

// UpdateTransactionStatus updates transaction status
func (t *Tx) UpdateTransactionStatus(ctx context.Context, transactionID int64, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2",
		status, transactionID)
	return err
}

// InsertAuditLog writes an audit row with the explicit actor identity.
func (t *Tx) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO logs (level, message, actor_id, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, entry, query,
		entry.Level, entry.Message, entry.ActorID, entry.Meta)
}
