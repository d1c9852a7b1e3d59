package orders

import "context"

// Tx is the unit of work handed to InTx callbacks. Lock* methods take row
// locks held until the transaction ends.
type Tx interface {
	LockProduct(ctx context.Context, id int64) (Product, error)
	// DecrementStock only succeeds while stock >= qty; ok=false otherwise.
	DecrementStock(ctx context.Context, id int64, qty int) (ok bool, err error)
	RestoreStock(ctx context.Context, id int64, qty int) error

	// InsertOrder persists the order with its items and fills in generated ids.
	InsertOrder(ctx context.Context, o *Order) error
	LockOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, s Status) error

	LockPaymentByInvoice(ctx context.Context, invoiceID string) (Payment, error)
	// ActivePayment returns the PENDING payment of an order, nil if none.
	ActivePayment(ctx context.Context, orderID int64) (*Payment, error)
	InsertPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p Payment) error
}

// Store is implemented by postgres.Store and memory.Store.
type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListActiveProducts(ctx context.Context) ([]Product, error)
	ActiveProduct(ctx context.Context, id int64) (Product, error)

	// Order loads the aggregate with items and latest payment.
	Order(ctx context.Context, id int64) (Order, error)
	OrdersForUser(ctx context.Context, userID int64, page Page) ([]Order, int, error)
	OrderByIdempotencyKey(ctx context.Context, userID int64, key string) (Order, error)
}

// EventSink receives domain events after commit. Emit must not block.
type EventSink interface {
	Emit(ctx context.Context, ev Envelope)
}

type NopSink struct{}

func (NopSink) Emit(context.Context, Envelope) {}
