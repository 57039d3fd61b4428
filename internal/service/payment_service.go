package service

import (
	"context"
	"fmt"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records payment attempts and refunds against orders.
// Bookkeeping only: the card network is somebody else's problem. Recording
// the Success transaction and completing the order happen in one
// transaction, as do the three effects of a refund.
type PaymentService struct {
	repo   models.Repository
	ledger *StockLedger
	events OrderEvents
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo models.Repository, ledger *StockLedger, events OrderEvents) *PaymentService {
	return &PaymentService{
		repo:   repo,
		ledger: ledger,
		events: events,
		logger: util.GetLogger(),
	}
}

// PayRequest carries a payment attempt.
type PayRequest struct {
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	ActorID       int64           `json:"actor_id,omitempty"`
}

// PayResponse is returned after a successful payment.
type PayResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Status        string `json:"status"`
}

// Pay validates the amount against the order total and, in one transaction,
// records a Success transaction and completes the order. The order row is
// locked first, so concurrent attempts against the same order serialize and
// at most one can succeed; a repeat attempt on a Completed order fails with
// ErrOrderNotPayable instead of double-charging.
func (ps *PaymentService) Pay(ctx context.Context, req *PayRequest) (*PayResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Pay")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	if !models.ValidPaymentMethod(req.PaymentMethod) {
		util.PaymentFailedTotal.WithLabelValues("invalid_method").Inc()
		return nil, fmt.Errorf("unknown payment method: %s", req.PaymentMethod)
	}

	txn := &models.Transaction{
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Status:        models.TransactionStatusSuccess,
		ProviderRef:   fmt.Sprintf("TXN-%s", uuid.New().String()[:8]),
	}

	var order *models.Order
	err := ps.repo.InTx(ctx, func(tx models.Tx) error {
		var err error
		order, err = tx.OrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}

		if !order.CanBePaid() {
			return models.ErrOrderNotPayable
		}

		// Exact decimal equality, checked before any mutation. No
		// transaction row is recorded for a mismatched amount.
		if !req.Amount.Equal(order.TotalAmount) {
			return models.ErrInvalidPaymentAmount
		}

		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		if err := tx.UpdateOrderStatus(ctx, req.OrderID, models.OrderStatusCompleted); err != nil {
			return fmt.Errorf("failed to complete order: %w", err)
		}

		return tx.InsertAuditLog(ctx, auditEntry("INFO",
			fmt.Sprintf("Payment transaction #%d for order #%d: %s", txn.ID, req.OrderID, txn.Status),
			ps.actor(req.ActorID, order), map[string]interface{}{
				"transaction_id": txn.ID,
				"order_id":       req.OrderID,
				"amount":         req.Amount.String(),
				"payment_method": req.PaymentMethod,
				"action":         "payment_processed",
			}))
	})
	if err != nil {
		switch err {
		case models.ErrOrderNotFound:
			util.PaymentFailedTotal.WithLabelValues("order_not_found").Inc()
		case models.ErrOrderNotPayable:
			util.PaymentFailedTotal.WithLabelValues("not_payable").Inc()
		case models.ErrInvalidPaymentAmount:
			util.PaymentFailedTotal.WithLabelValues("amount_mismatch").Inc()
			ps.logger.Warn("Payment amount mismatch",
				zap.Int64("order_id", req.OrderID),
				zap.String("requested", req.Amount.String()))
		default:
			util.PaymentFailedTotal.WithLabelValues("db_error").Inc()
			ps.logger.Error("Payment failed",
				zap.Int64("order_id", req.OrderID),
				zap.Error(err))
		}
		return nil, err
	}

	util.PaymentSuccessTotal.Inc()
	ps.logger.Info("Payment succeeded",
		zap.Int64("order_id", req.OrderID),
		zap.Int64("transaction_id", txn.ID),
		zap.String("provider_ref", txn.ProviderRef))

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID:       req.OrderID,
		BuyerID:       order.BuyerID,
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		PaymentMethod: txn.PaymentMethod,
	}

	if err := ps.events.PublishOrderCompleted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}

	return &PayResponse{
		TransactionID: txn.ID,
		Status:        txn.Status,
	}, nil
}

// Refund compensates a successful payment: the transaction and its order
// move to Refunded and every line quantity goes back to stock, all in one
// transaction.
func (ps *PaymentService) Refund(ctx context.Context, transactionID, actorID int64) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Refund")
	defer span.End()

	var (
		order *models.Order
		txn   *models.Transaction
		lines []models.OrderLine
	)

	err := ps.repo.InTx(ctx, func(tx models.Tx) error {
		var err error
		txn, err = tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}

		if !txn.CanBeRefunded() {
			return models.ErrNotRefundable
		}

		order, err = tx.OrderForUpdate(ctx, txn.OrderID)
		if err != nil {
			return err
		}

		if err := tx.UpdateTransactionStatus(ctx, transactionID, models.TransactionStatusRefunded); err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}

		if err := tx.UpdateOrderStatus(ctx, txn.OrderID, models.OrderStatusRefunded); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		lines, err = tx.OrderLines(ctx, txn.OrderID)
		if err != nil {
			return fmt.Errorf("failed to load order lines: %w", err)
		}

		for _, line := range lines {
			if err := ps.ledger.Release(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return fmt.Errorf("failed to release stock for product %d: %w", line.ProductID, err)
			}
		}

		return tx.InsertAuditLog(ctx, auditEntry("INFO",
			fmt.Sprintf("Transaction #%d refunded for order #%d", transactionID, txn.OrderID),
			ps.actor(actorID, order), map[string]interface{}{
				"transaction_id": transactionID,
				"order_id":       txn.OrderID,
				"amount":         txn.Amount.String(),
				"action":         "transaction_refunded",
			}))
	})
	if err != nil {
		if err != models.ErrTransactionNotFound && err != models.ErrNotRefundable {
			ps.logger.Error("Refund failed",
				zap.Int64("transaction_id", transactionID),
				zap.Error(err))
		}
		return "", err
	}

	util.RefundsTotal.Inc()
	ps.logger.Info("Transaction refunded",
		zap.Int64("transaction_id", transactionID),
		zap.Int64("order_id", txn.OrderID))

	eventLines := make([]models.OrderLineData, 0, len(lines))
	for _, line := range lines {
		eventLines = append(eventLines, models.OrderLineData{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPriceAtPurchase,
		})
	}

	event := &models.OrderRefundedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderRefunded,
			Timestamp: time.Now(),
		},
		OrderID:       txn.OrderID,
		BuyerID:       order.BuyerID,
		TransactionID: transactionID,
		Amount:        txn.Amount,
		Lines:         eventLines,
	}

	if err := ps.events.PublishOrderRefunded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderRefunded event", zap.Error(err))
	}

	return fmt.Sprintf("Transaction #%d refunded", transactionID), nil
}

// GetTransactions retrieves payment attempts for an order
func (ps *PaymentService) GetTransactions(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	return ps.repo.TransactionsByOrder(ctx, orderID)
}

func (ps *PaymentService) actor(actorID int64, order *models.Order) int64 {
	if actorID != 0 {
		return actorID
	}
	return order.BuyerID
}
