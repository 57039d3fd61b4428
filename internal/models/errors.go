package models

import (
	"errors"
	"fmt"
)

// Domain errors surfaced by the workflows. The HTTP layer maps these to
// 4xx responses; anything else is an opaque internal error.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotPayable      = errors.New("order is not in a payable state")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNotRefundable        = errors.New("transaction cannot be refunded")
	ErrInvalidPaymentAmount = errors.New("payment amount does not match order total")
)

// InsufficientStockError reports a failed reservation together with the
// quantity that was actually available at the time of the check.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%d, available=%d",
		e.ProductID, e.Requested, e.Available)
}

// AsInsufficientStock unwraps err into an InsufficientStockError, if it is one.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
