package service

import (
	"context"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// StockLedger owns per-product availability. All stock mutation in the
// system goes through Reserve and Release; both operate on a product row
// locked inside the caller's transaction, which makes them linearizable
// per product.
type StockLedger struct {
	logger *zap.Logger
}

// NewStockLedger creates a new stock ledger
func NewStockLedger() *StockLedger {
	return &StockLedger{
		logger: util.GetLogger(),
	}
}

// Reserve atomically checks availability and decrements it in the same
// locked step. On shortage it returns an InsufficientStockError carrying the
// quantity that was available, and mutates nothing.
func (sl *StockLedger) Reserve(ctx context.Context, tx models.Tx, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "StockLedger.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.StockReserveLatency.Observe(time.Since(start).Seconds())
	}()

	product, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		util.StockReservationsFailed.WithLabelValues("lock_error").Inc()
		return err
	}

	if product.AvailableQuantity < quantity {
		util.StockReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		return &models.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.AvailableQuantity,
		}
	}

	remaining := product.AvailableQuantity - quantity
	purchasable := product.IsPurchasable
	if remaining == 0 {
		purchasable = false
	}

	if err := tx.UpdateProductStock(ctx, productID, remaining, purchasable); err != nil {
		util.StockReservationsFailed.WithLabelValues("db_error").Inc()
		return err
	}

	sl.logger.Debug("Stock reserved",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("remaining", remaining))

	return nil
}

// Release atomically increments availability, restoring purchasability when
// the count leaves zero. Used by refund and cancellation compensation.
func (sl *StockLedger) Release(ctx context.Context, tx models.Tx, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "StockLedger.Release")
	defer span.End()

	product, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}

	available := product.AvailableQuantity + quantity
	purchasable := product.IsPurchasable
	if product.AvailableQuantity == 0 && available > 0 {
		purchasable = true
	}

	if err := tx.UpdateProductStock(ctx, productID, available, purchasable); err != nil {
		return err
	}

	sl.logger.Debug("Stock released",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("available", available))

	return nil
}
