// Package memory is an in-process implementation of the order and user
// stores. Transactions are serialized by a single mutex and applied by
// swapping in a modified copy of the state on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type state struct {
	products map[int64]orders.Product
	orders   map[int64]orders.Order // Payment is resolved on read
	payments map[int64]orders.Payment
	users    map[int64]auth.User

	nextProduct, nextOrder, nextItem, nextPayment, nextUser int64
}

func (s state) clone() state {
	c := s
	c.products = make(map[int64]orders.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.orders = make(map[int64]orders.Order, len(s.orders))
	for k, v := range s.orders {
		v.Items = append([]orders.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	c.payments = make(map[int64]orders.Payment, len(s.payments))
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.users = make(map[int64]auth.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  state
	Now func() time.Time
}

func New() *Store {
	return &Store{st: state{
		products: map[int64]orders.Product{},
		orders:   map[int64]orders.Order{},
		payments: map[int64]orders.Payment{},
		users:    map[int64]auth.User{},
	}}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: &work, now: s.now()}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// CreateProduct adds a product, used by seeding and tests.
func (s *Store) CreateProduct(_ context.Context, p *orders.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextProduct++
	p.ID = s.st.nextProduct
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.st.products[p.ID] = *p
	return nil
}

// Product returns the raw product row regardless of the active flag.
func (s *Store) Product(id int64) (orders.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

// Payments returns every payment of an order, oldest first.
func (s *Store) Payments(orderID int64) []orders.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Payment
	for _, p := range s.st.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderCount is the number of orders ever committed.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ActiveProduct(ctx context.Context, id int64) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	if !ok || !p.IsActive {
		return orders.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) Order(ctx context.Context, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return s.st.withPayment(o), nil
}

func (s *Store) OrdersForUser(ctx context.Context, userID int64, page orders.Page) ([]orders.Order, int, error) {
	page = page.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []orders.Order
	for _, o := range s.st.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	// terbaru dulu
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	from := min(page.Offset(), total)
	to := min(from+page.Size, total)
	out := make([]orders.Order, 0, to-from)
	for _, o := range all[from:to] {
		out = append(out, s.st.withPayment(o))
	}
	return out, total, nil
}

func (s *Store) OrderByIdempotencyKey(ctx context.Context, userID int64, key string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st.orders {
		if o.UserID == userID && o.IdempotencyKey != "" && o.IdempotencyKey == key {
			return s.st.withPayment(o), nil
		}
	}
	return orders.Order{}, orders.ErrOrderNotFound
}

func (st *state) withPayment(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	o.Payment = nil
	for _, p := range st.payments {
		if p.OrderID == o.ID && (o.Payment == nil || p.ID > o.Payment.ID) {
			p := p
			o.Payment = &p
		}
	}
	return o
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.users {
		if existing.Email == u.Email {
			return auth.ErrEmailTaken
		}
	}
	s.st.nextUser++
	u.ID = s.st.nextUser
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.st.users[u.ID] = *u
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (s *Store) UserByID(ctx context.Context, id int64) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) HasProducts(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.products) > 0, nil
}
