package models

import "context"

// Repository is the persistence surface the workflows run against. The sqlx
// store implements it for Postgres; tests implement it in memory.
type Repository interface {
	// InTx runs fn inside a single database transaction. fn returning an
	// error rolls back every write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CartSnapshot(ctx context.Context, buyerID int64) ([]SnapshotLine, error)
	OrderByID(ctx context.Context, orderID int64) (*Order, error)
	OrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)
	OrdersByBuyer(ctx context.Context, buyerID int64, status string) ([]Order, error)
	TransactionsByOrder(ctx context.Context, orderID int64) ([]Transaction, error)
	ProductAvailability(ctx context.Context, productID int64) (int, error)
}

// Tx is the transaction-scoped half of Repository. Locking reads take
// row-level locks held until the enclosing transaction ends.
type Tx interface {
	ProductForUpdate(ctx context.Context, productID int64) (*Product, error)
	UpdateProductStock(ctx context.Context, productID int64, available int, purchasable bool) error

	InsertOrder(ctx context.Context, order *Order) error
	InsertOrderLine(ctx context.Context, line *OrderLine) error
	OrderForUpdate(ctx context.Context, orderID int64) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	OrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)

	DeleteCartLines(ctx context.Context, buyerID int64, productIDs []int64) error

	InsertTransaction(ctx context.Context, txn *Transaction) error
	TransactionForUpdate(ctx context.Context, transactionID int64) (*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID int64, status string) error

	InsertAuditLog(ctx context.Context, entry *AuditLog) error
}
