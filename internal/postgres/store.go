package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const codeUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.LockTimeout > 0 {
		// SET LOCAL tidak bisa pakai bind parameter
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.LockTimeout.Milliseconds())); err != nil {
			return errors.Wrap(err, "set lock_timeout")
		}
	}
	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productCols+` FROM products WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "list products")
}

func (s *Store) ActiveProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 AND is_active`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, errors.Wrap(err, "get product")
}

func (s *Store) HasProducts(ctx context.Context) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products)`).Scan(&exists)
	return exists, errors.Wrap(err, "check products")
}

func (s *Store) CreateProduct(ctx context.Context, p *orders.Product) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, price, stock, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Price, p.Stock, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return errors.Wrap(err, "insert product")
}

func (s *Store) Order(ctx context.Context, id int64) (orders.Order, error) {
	return loadOrder(ctx, s.DB, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
}

func (s *Store) OrderByIdempotencyKey(ctx context.Context, userID int64, key string) (orders.Order, error) {
	return loadOrder(ctx, s.DB, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 AND idempotency_key=$2`, userID, key)
}

func (s *Store) OrdersForUser(ctx context.Context, userID int64, page orders.Page) ([]orders.Order, int, error) {
	page = page.Normalize()

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	rows, err := s.DB.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var (
		out []orders.Order
		ids []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	if len(ids) == 0 {
		return out, total, nil
	}

	items, err := itemsFor(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}
	payments, err := latestPaymentsFor(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if p, ok := payments[out[i].ID]; ok {
			p := p
			out[i].Payment = &p
		}
	}
	return out, total, nil
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
