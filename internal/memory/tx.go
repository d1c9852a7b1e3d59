package memory

import (
	"context"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type tx struct {
	st  *state
	now time.Time
}

func (t *tx) LockProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (t *tx) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	p, ok := t.st.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = t.now
	t.st.products[id] = p
	return true, nil
}

func (t *tx) RestoreStock(ctx context.Context, id int64, qty int) error {
	p, ok := t.st.products[id]
	if !ok {
		return orders.ErrProductNotFound
	}
	p.Stock += qty
	p.UpdatedAt = t.now
	t.st.products[id] = p
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	for _, existing := range t.st.orders {
		if existing.OrderNumber == o.OrderNumber {
			return orders.ErrDuplicateOrderNumber
		}
		if o.IdempotencyKey != "" && existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return orders.ErrDuplicateIdempotencyKey
		}
	}
	t.st.nextOrder++
	o.ID = t.st.nextOrder
	for i := range o.Items {
		t.st.nextItem++
		o.Items[i].ID = t.st.nextItem
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = append([]orders.OrderItem(nil), o.Items...)
	stored.Payment = nil
	t.st.orders[o.ID] = stored
	return nil
}

func (t *tx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return t.st.withPayment(o), nil
}

func (t *tx) UpdateOrderStatus(ctx context.Context, id int64, s orders.Status) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = s
	o.UpdatedAt = t.now
	t.st.orders[id] = o
	return nil
}

func (t *tx) LockPaymentByInvoice(ctx context.Context, invoiceID string) (orders.Payment, error) {
	for _, p := range t.st.payments {
		if p.InvoiceID == invoiceID {
			return p, nil
		}
	}
	return orders.Payment{}, orders.ErrPaymentNotFound
}

func (t *tx) ActivePayment(ctx context.Context, orderID int64) (*orders.Payment, error) {
	for _, p := range t.st.payments {
		if p.OrderID == orderID && p.Status == orders.PaymentPending {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertPayment(ctx context.Context, p *orders.Payment) error {
	for _, existing := range t.st.payments {
		if existing.InvoiceID == p.InvoiceID {
			return orders.ErrDuplicateInvoice
		}
		if p.Status == orders.PaymentPending && existing.OrderID == p.OrderID && existing.Status == orders.PaymentPending {
			return orders.ErrActivePaymentExists
		}
	}
	t.st.nextPayment++
	p.ID = t.st.nextPayment
	p.CreatedAt, p.UpdatedAt = t.now, t.now
	t.st.payments[p.ID] = *p
	return nil
}

func (t *tx) UpdatePayment(ctx context.Context, p orders.Payment) error {
	if _, ok := t.st.payments[p.ID]; !ok {
		return orders.ErrPaymentNotFound
	}
	p.UpdatedAt = t.now
	t.st.payments[p.ID] = p
	return nil
}
