package orders

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not active")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid order status transition")

	// returned by Tx implementations on unique violations
	ErrDuplicateOrderNumber    = errors.New("order number already exists")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrActivePaymentExists     = errors.New("order already has an active payment")
	ErrDuplicateInvoice        = errors.New("invoice already recorded")
)

// ProductError ties a product lookup failure to the cart line's product id.
type ProductError struct {
	ProductID int64
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%v: %d", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ValidationError reports a cart that breaks the checkout limits.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
