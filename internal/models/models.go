package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stock-bearing catalog entry. The catalog owns everything but
// AvailableQuantity and IsPurchasable, which are mutated only through the
// stock ledger.
type Product struct {
	ID                int64           `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	AvailableQuantity int             `db:"available_quantity" json:"available_quantity"`
	IsPurchasable     bool            `db:"is_purchasable" json:"is_purchasable"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// CartLine is one (buyer, product) row in the externally owned cart.
type CartLine struct {
	ID        int64     `db:"id" json:"id"`
	BuyerID   int64     `db:"buyer_id" json:"buyer_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SnapshotLine is a cart line joined with the product price at snapshot time.
// The price captured here is the one carried through order creation; it is
// never re-read from the live product afterward.
type SnapshotLine struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Subtotal returns quantity times the captured unit price.
func (l SnapshotLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a purchase header. Everything except Status and DeliveryAddress
// is immutable after creation; TotalAmount is fixed at creation and never
// recomputed.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	BuyerID         int64           `db:"buyer_id" json:"buyer_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          string          `db:"status" json:"status"`
	DeliveryAddress *string         `db:"delivery_address" json:"delivery_address,omitempty"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderLine is immutable once created.
type OrderLine struct {
	ID                  int64           `db:"id" json:"id"`
	OrderID             int64           `db:"order_id" json:"order_id"`
	ProductID           int64           `db:"product_id" json:"product_id"`
	Quantity            int             `db:"quantity" json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `db:"unit_price_at_purchase" json:"unit_price_at_purchase"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
}

// Transaction is one payment attempt against an order. An order may carry
// several, but at most one with status Success.
type Transaction struct {
	ID            int64           `db:"id" json:"id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        string          `db:"status" json:"status"`
	ProviderRef   string          `db:"provider_ref" json:"provider_ref,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// AuditLog is a synchronous audit row written by the workflows with an
// explicit actor, replacing trigger-driven logging.
type AuditLog struct {
	ID        int64     `db:"id" json:"id"`
	Level     string    `db:"level" json:"level"`
	Message   string    `db:"message" json:"message"`
	ActorID   int64     `db:"actor_id" json:"actor_id"`
	Meta      string    `db:"meta" json:"meta"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending    = "Pending"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCompleted  = "Completed"
	OrderStatusRefunded   = "Refunded"
	OrderStatusCancelled  = "Cancelled"
)

// Transaction statuses
const (
	TransactionStatusPending  = "Pending"
	TransactionStatusSuccess  = "Success"
	TransactionStatusFailed   = "Failed"
	TransactionStatusRefunded = "Refunded"
)

// Payment methods
const (
	PaymentMethodCard         = "Card"
	PaymentMethodCash         = "Cash"
	PaymentMethodOnline       = "Online"
	PaymentMethodBankTransfer = "Bank Transfer"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusRefunded,
		OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodOnline, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// CanBePaid reports whether a payment attempt is accepted for this order.
// A cancelled order can be revived by paying it.
func (o *Order) CanBePaid() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusCancelled
}

// CanBeRefunded reports whether this transaction may be refunded.
func (t *Transaction) CanBeRefunded() bool {
	return t.Status == TransactionStatusSuccess
}

// LineTotal returns quantity times the price captured at purchase.
func (l *OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
