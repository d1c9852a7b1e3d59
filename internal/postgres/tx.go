package postgres

import (
	"context"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type pgTx struct{ q querier }

// LockProduct: row lock sampai commit/rollback, checkout lain di product yang sama antre di sini.
func (t *pgTx) LockProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(t.q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, errors.Wrap(err, "lock product")
}

func (t *pgTx) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	ct, err := t.q.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1 AND stock >= $2`, id, qty)
	if err != nil {
		return false, errors.Wrap(err, "decrement stock")
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) RestoreStock(ctx context.Context, id int64, qty int) error {
	ct, err := t.q.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, id, qty)
	if err != nil {
		return errors.Wrap(err, "restore stock")
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrProductNotFound
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO orders(user_id, order_number, total_amount, status, shipping_address, idempotency_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$7)
		RETURNING id`,
		o.UserID, o.OrderNumber, o.TotalAmount, string(o.Status), o.ShippingAddress, o.IdempotencyKey, o.CreatedAt,
	).Scan(&o.ID)
	if name, ok := uniqueViolation(err); ok {
		switch name {
		case "orders_order_number_key":
			return orders.ErrDuplicateOrderNumber
		case "orders_user_idempotency_key":
			return orders.ErrDuplicateIdempotencyKey
		}
	}
	if err != nil {
		return errors.Wrap(err, "insert order")
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := t.q.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, quantity, price, subtotal, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price, it.Subtotal, it.CreatedAt,
		).Scan(&it.ID); err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return loadOrder(ctx, t.q, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id int64, s orders.Status) error {
	ct, err := t.q.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(s))
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) LockPaymentByInvoice(ctx context.Context, invoiceID string) (orders.Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE payment_id=$1 FOR UPDATE`, invoiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Payment{}, orders.ErrPaymentNotFound
	}
	return p, errors.Wrap(err, "lock payment")
}

func (t *pgTx) ActivePayment(ctx context.Context, orderID int64) (*orders.Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, `
		SELECT `+paymentCols+` FROM payments
		WHERE order_id=$1 AND status='PENDING'
		ORDER BY id DESC LIMIT 1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get active payment")
	}
	return &p, nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *orders.Payment) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO payments(order_id, payment_id, external_id, amount, status, payment_url, expiry_date, paid_at, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at`,
		p.OrderID, p.InvoiceID, p.ExternalID, p.Amount, string(p.Status), p.PaymentURL, p.ExpiresAt, p.PaidAt, p.PaymentMethod,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if name, ok := uniqueViolation(err); ok {
		switch name {
		case "payments_one_pending_per_order":
			return orders.ErrActivePaymentExists
		case "payments_payment_id_key":
			return orders.ErrDuplicateInvoice
		}
	}
	return errors.Wrap(err, "insert payment")
}

func (t *pgTx) UpdatePayment(ctx context.Context, p orders.Payment) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE payments SET status=$2, paid_at=$3, payment_method=$4, updated_at=now()
		WHERE id=$1`,
		p.ID, string(p.Status), p.PaidAt, p.PaymentMethod)
	if err != nil {
		return errors.Wrap(err, "update payment")
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrPaymentNotFound
	}
	return nil
}
