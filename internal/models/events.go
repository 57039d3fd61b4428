package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderRefunded  = "ORDER_REFUNDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLineData is the per-line payload carried on order events so that
// downstream consumers do not have to re-read the order.
type OrderLineData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent published after an order is committed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	BuyerID     int64           `json:"buyer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []OrderLineData `json:"lines"`
}

// OrderCompletedEvent published after a successful payment
type OrderCompletedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	BuyerID       int64           `json:"buyer_id"`
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

// OrderRefundedEvent published after a refund restored stock
type OrderRefundedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	BuyerID       int64           `json:"buyer_id"`
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Lines         []OrderLineData `json:"lines"`
}
