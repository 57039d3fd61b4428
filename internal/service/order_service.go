package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderEvents is the post-commit notification surface for order workflows.
type OrderEvents interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error
}

// OrderService converts carts into persisted orders. The whole workflow runs
// in one database transaction: stock reservation, the order and its lines,
// the snapshotted cart-line deletes and the audit row all commit together, so
// a failed attempt leaves no observable state behind.
type OrderService struct {
	repo       models.Repository
	cartReader *CartReader
	ledger     *StockLedger
	events     OrderEvents
	logger     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	repo models.Repository,
	cartReader *CartReader,
	ledger *StockLedger,
	events OrderEvents,
) *OrderService {
	return &OrderService{
		repo:       repo,
		cartReader: cartReader,
		ledger:     ledger,
		events:     events,
		logger:     util.GetLogger(),
	}
}

// CreateOrderRequest carries the inputs of the order-creation workflow.
// ActorID identifies who triggered it for the audit trail; it defaults to
// the buyer.
type CreateOrderRequest struct {
	BuyerID        int64  `json:"buyer_id" binding:"required"`
	ActorID        int64  `json:"actor_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse is returned after a successful order creation.
type CreateOrderResponse struct {
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
}

// CreateOrderFromCart snapshots the buyer's cart, reserves stock for every
// line in ascending product-id order, persists the order and clears the
// snapshotted cart lines as one atomic unit.
func (s *OrderService) CreateOrderFromCart(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrderFromCart")
	defer span.End()

	actorID := req.ActorID
	if actorID == 0 {
		actorID = req.BuyerID
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.OrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return &CreateOrderResponse{
				OrderID:     existing.ID,
				TotalAmount: existing.TotalAmount,
				Status:      existing.Status,
			}, nil
		}
	}

	lines, err := s.cartReader.Snapshot(ctx, req.BuyerID)
	if err != nil {
		if err == models.ErrEmptyCart {
			util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		}
		return nil, err
	}

	// Ascending product id keeps lock acquisition ordered across workflows
	// that touch overlapping product sets.
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	total := decimal.Zero
	productIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		total = total.Add(line.Subtotal())
		productIDs = append(productIDs, line.ProductID)
	}

	order := &models.Order{
		BuyerID:        req.BuyerID,
		TotalAmount:    total,
		Status:         models.OrderStatusPending,
		IdempotencyKey: req.IdempotencyKey,
	}

	eventLines := make([]models.OrderLineData, 0, len(lines))

	err = s.repo.InTx(ctx, func(tx models.Tx) error {
		for _, line := range lines {
			if err := s.ledger.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, line := range lines {
			orderLine := &models.OrderLine{
				OrderID:             order.ID,
				ProductID:           line.ProductID,
				Quantity:            line.Quantity,
				UnitPriceAtPurchase: line.UnitPrice,
			}
			if err := tx.InsertOrderLine(ctx, orderLine); err != nil {
				return fmt.Errorf("failed to create order line: %w", err)
			}
			eventLines = append(eventLines, models.OrderLineData{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			})
		}

		if err := tx.DeleteCartLines(ctx, req.BuyerID, productIDs); err != nil {
			return fmt.Errorf("failed to clear cart lines: %w", err)
		}

		return tx.InsertAuditLog(ctx, auditEntry("INFO",
			fmt.Sprintf("Order #%d created for buyer %d", order.ID, req.BuyerID),
			actorID, map[string]interface{}{
				"order_id":     order.ID,
				"total_amount": total.String(),
				"action":       "order_created",
			}))
	})
	if err != nil {
		if ise, ok := models.AsInsufficientStock(err); ok {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			s.logger.Warn("Order creation rejected",
				zap.Int64("buyer_id", req.BuyerID),
				zap.Int64("product_id", ise.ProductID),
				zap.Int("requested", ise.Requested),
				zap.Int("available", ise.Available))
			return nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Order creation failed",
			zap.Int64("buyer_id", req.BuyerID),
			zap.Error(err))
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", req.BuyerID),
		zap.String("total_amount", total.String()))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		Lines:       eventLines,
	}

	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateOrderResponse{
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
	}, nil
}

// GetOrder retrieves an order and its lines by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderLine, error) {
	order, err := s.repo.OrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	lines, err := s.repo.OrderLines(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, lines, nil
}

// GetBuyerOrders retrieves a buyer's orders, newest first, optionally
// filtered by status.
func (s *OrderService) GetBuyerOrders(ctx context.Context, buyerID int64, status string) ([]models.Order, error) {
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("unknown order status: %s", status)
	}
	return s.repo.OrdersByBuyer(ctx, buyerID, status)
}

// UpdateOrderStatus accepts an externally driven status transition
// (fulfilment: Processing, Shipped, Delivered and so on). Payment-owned
// transitions stay with the payment service; this only validates that the
// target status is known and the order exists.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status string, actorID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("unknown order status: %s", status)
	}

	return s.repo.InTx(ctx, func(tx models.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, status); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		return tx.InsertAuditLog(ctx, auditEntry("INFO",
			fmt.Sprintf("Order #%d status %s -> %s", orderID, order.Status, status),
			actorID, map[string]interface{}{
				"order_id": orderID,
				"from":     order.Status,
				"to":       status,
				"action":   "order_status_updated",
			}))
	})
}

func auditEntry(level, message string, actorID int64, meta map[string]interface{}) *models.AuditLog {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}
	return &models.AuditLog{
		Level:   level,
		Message: message,
		ActorID: actorID,
		Meta:    string(metaJSON),
	}
}
