package postgres

import (
	"context"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const (
	productCols = `id, name, description, price, stock, is_active, created_at, updated_at`
	orderCols   = `id, user_id, order_number, total_amount, status, shipping_address, COALESCE(idempotency_key, ''), created_at, updated_at`
	itemCols    = `id, order_id, product_id, product_name, quantity, price, subtotal, created_at`
	paymentCols = `id, order_id, payment_id, external_id, amount, status, payment_url, expiry_date, paid_at, payment_method, created_at, updated_at`
)

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.TotalAmount, &status, &o.ShippingAddress, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

func scanItem(row pgx.Row) (orders.OrderItem, error) {
	var it orders.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.Subtotal, &it.CreatedAt)
	return it, err
}

func scanPayment(row pgx.Row) (orders.Payment, error) {
	var (
		p      orders.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.InvoiceID, &p.ExternalID, &p.Amount, &status, &p.PaymentURL,
		&p.ExpiresAt, &p.PaidAt, &p.PaymentMethod, &p.CreatedAt, &p.UpdatedAt)
	p.Status = orders.PaymentStatus(status)
	return p, err
}

// loadOrder reads one order row and fills in items and the latest payment.
func loadOrder(ctx context.Context, q querier, sql string, args ...any) (orders.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, errors.Wrap(err, "get order")
	}
	items, err := itemsFor(ctx, q, []int64{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	o.Items = items[o.ID]
	payments, err := latestPaymentsFor(ctx, q, []int64{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	if p, ok := payments[o.ID]; ok {
		o.Payment = &p
	}
	return o, nil
}

func itemsFor(ctx context.Context, q querier, orderIDs []int64) (map[int64][]orders.OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemCols+` FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	out := make(map[int64][]orders.OrderItem, len(orderIDs))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, errors.Wrap(rows.Err(), "list order items")
}

func latestPaymentsFor(ctx context.Context, q querier, orderIDs []int64) (map[int64]orders.Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT DISTINCT ON (order_id) `+paymentCols+`
		FROM payments WHERE order_id = ANY($1)
		ORDER BY order_id, id DESC`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer rows.Close()

	out := make(map[int64]orders.Payment, len(orderIDs))
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out[p.OrderID] = p
	}
	return out, errors.Wrap(rows.Err(), "list payments")
}
