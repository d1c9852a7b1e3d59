package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/memory"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []orders.Envelope
}

func (s *recordingSink) Emit(_ context.Context, ev orders.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

// failingStore makes InsertOrder fail after stock has been decremented.
type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return f.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: f.err})
	})
}

type failingTx struct {
	orders.Tx
	err error
}

func (f failingTx) InsertOrder(context.Context, *orders.Order) error { return f.err }

const address = "Jl. Sudirman No. 1, Jakarta"

func addProduct(t *testing.T, st *memory.Store, name, price string, stock int, active bool) orders.Product {
	t.Helper()
	p := orders.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, IsActive: active}
	require.NoError(t, st.CreateProduct(context.Background(), &p))
	return p
}

func setup(t *testing.T) (*orders.Checkout, *memory.Store, *recordingSink) {
	t.Helper()
	st := memory.New()
	sink := &recordingSink{}
	return &orders.Checkout{Store: st, Events: sink, Producer: "shop-api"}, st, sink
}

func stockOf(t *testing.T, st *memory.Store, id int64) int {
	t.Helper()
	p, ok := st.Product(id)
	require.True(t, ok)
	return p.Stock
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending order and decrements stock", func(t *testing.T) {
		svc, st, sink := setup(t)
		laptop := addProduct(t, st, "Laptop ASUS ROG Strix G15", "15000000", 10, true)

		res, err := svc.Checkout(ctx, orders.CheckoutInput{
			UserID:          7,
			Items:           []orders.CartLine{{ProductID: laptop.ID, Quantity: 2}},
			ShippingAddress: address,
		})
		require.NoError(t, err)

		o := res.Order
		assert.False(t, res.Replayed)
		assert.NotZero(t, o.ID)
		assert.Equal(t, orders.StatusPending, o.Status)
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(30000000)), o.TotalAmount.String())
		require.Len(t, o.Items, 1)
		assert.Equal(t, "Laptop ASUS ROG Strix G15", o.Items[0].ProductName)
		assert.True(t, o.Items[0].Subtotal.Equal(decimal.NewFromInt(30000000)))
		assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{12}$`, o.OrderNumber)
		assert.Equal(t, 8, stockOf(t, st, laptop.ID))
		assert.Equal(t, []string{orders.EventOrderCreated}, sink.types())

		stored, err := st.Order(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.OrderNumber, stored.OrderNumber)
		assert.Nil(t, stored.Payment)
	})

	t.Run("oversized line changes nothing", func(t *testing.T) {
		svc, st, sink := setup(t)
		p := addProduct(t, st, "Apple Watch Series 8", "6500000", 8, true)

		_, err := svc.Checkout(ctx, orders.CheckoutInput{
			UserID:          7,
			Items:           []orders.CartLine{{ProductID: p.ID, Quantity: 11}},
			ShippingAddress: address,
		})
		var ve *orders.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "items.quantity", ve.Field)
		assert.Equal(t, 0, st.OrderCount())
		assert.Equal(t, 8, stockOf(t, st, p.ID))
		assert.Empty(t, sink.types())
	})

	t.Run("insufficient stock on a later line rolls back earlier lines", func(t *testing.T) {
		svc, st, _ := setup(t)
		phone := addProduct(t, st, "Smartphone Samsung Galaxy S23", "12000000", 15, true)
		watch := addProduct(t, st, "Apple Watch Series 8", "6500000", 2, true)

		_, err := svc.Checkout(ctx, orders.CheckoutInput{
			UserID: 7,
			Items: []orders.CartLine{
				{ProductID: phone.ID, Quantity: 3},
				{ProductID: watch.ID, Quantity: 5},
			},
			ShippingAddress: address,
		})
		require.ErrorIs(t, err, orders.ErrInsufficientStock)
		var se *orders.InsufficientStockError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.Available)
		assert.Equal(t, 5, se.Requested)

		assert.Equal(t, 15, stockOf(t, st, phone.ID))
		assert.Equal(t, 2, stockOf(t, st, watch.ID))
		assert.Equal(t, 0, st.OrderCount())
	})

	t.Run("repeated product lines share the stock check", func(t *testing.T) {
		svc, st, _ := setup(t)
		p := addProduct(t, st, "iPad Air 5th Generation", "8500000", 5, true)

		_, err := svc.Checkout(ctx, orders.CheckoutInput{
			UserID:          7,
			Items:           []orders.CartLine{{ProductID: p.ID, Quantity: 3}, {ProductID: p.ID, Quantity: 3}},
			ShippingAddress: address,
		})
		require.ErrorIs(t, err, orders.ErrInsufficientStock)
		assert.Equal(t, 5, stockOf(t, st, p.ID))
	})

	t.Run("unknown and inactive products", func(t *testing.T) {
		svc, st, _ := setup(t)
		off := addProduct(t, st, "Discontinued", "1000", 5, false)

		_, err := svc.Checkout(ctx, orders.CheckoutInput{
			UserID: 7, Items: []orders.CartLine{{ProductID: 999, Quantity: 1}}, ShippingAddress: address,
		})
		assert.ErrorIs(t, err, orders.ErrProductNotFound)

		_, err = svc.Checkout(ctx, orders.CheckoutInput{
			UserID: 7, Items: []orders.CartLine{{ProductID: off.ID, Quantity: 1}}, ShippingAddress: address,
		})
		assert.ErrorIs(t, err, orders.ErrProductInactive)
		assert.True(t, orders.IsRejection(err))
		assert.Equal(t, 5, stockOf(t, st, off.ID))
	})

	t.Run("failed insert rolls back stock", func(t *testing.T) {
		st := memory.New()
		p := addProduct(t, st, "Headphone Sony WH-1000XM4", "3500000", 20, true)
		boom := errors.New("disk full")
		svc := &orders.Checkout{Store: failingStore{Store: st, err: boom}}

		_, err := svc.Checkout(ctx, orders.CheckoutInput{
			UserID: 7, Items: []orders.CartLine{{ProductID: p.ID, Quantity: 4}}, ShippingAddress: address,
		})
		require.ErrorIs(t, err, boom)
		assert.False(t, orders.IsRejection(err))
		assert.Equal(t, 20, stockOf(t, st, p.ID))
	})

	t.Run("idempotency key replays the first order", func(t *testing.T) {
		svc, st, sink := setup(t)
		p := addProduct(t, st, "Headphone Sony WH-1000XM4", "3500000", 20, true)
		in := orders.CheckoutInput{
			UserID: 7, Items: []orders.CartLine{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: address,
			IdempotencyKey: "cart-123",
		}

		first, err := svc.Checkout(ctx, in)
		require.NoError(t, err)
		second, err := svc.Checkout(ctx, in)
		require.NoError(t, err)

		assert.True(t, second.Replayed)
		assert.Equal(t, first.Order.ID, second.Order.ID)
		assert.Equal(t, 19, stockOf(t, st, p.ID))
		assert.Len(t, sink.types(), 1)

		in.UserID = 8
		other, err := svc.Checkout(ctx, in)
		require.NoError(t, err)
		assert.NotEqual(t, first.Order.ID, other.Order.ID)
	})

	t.Run("order number collision is retried", func(t *testing.T) {
		svc, st, _ := setup(t)
		p := addProduct(t, st, "Headphone Sony WH-1000XM4", "3500000", 20, true)
		numbers := []string{"ORD-A", "ORD-A", "ORD-B"}
		svc.NewNumber = func(time.Time) string {
			n := numbers[0]
			numbers = numbers[1:]
			return n
		}
		in := orders.CheckoutInput{UserID: 7, Items: []orders.CartLine{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: address}

		a, err := svc.Checkout(ctx, in)
		require.NoError(t, err)
		b, err := svc.Checkout(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, "ORD-A", a.Order.OrderNumber)
		assert.Equal(t, "ORD-B", b.Order.OrderNumber)
		assert.Equal(t, 18, stockOf(t, st, p.ID))
	})
}

func TestCheckoutConcurrentFullStock(t *testing.T) {
	for round := 0; round < 20; round++ {
		svc, st, _ := setup(t)
		const stock = 5
		p := addProduct(t, st, "Apple Watch Series 8", "6500000", stock, true)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			rejected  int
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(user int64) {
				defer wg.Done()
				_, err := svc.Checkout(context.Background(), orders.CheckoutInput{
					UserID: user, Items: []orders.CartLine{{ProductID: p.ID, Quantity: stock}}, ShippingAddress: address,
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
				} else if errors.Is(err, orders.ErrInsufficientStock) {
					rejected++
				}
			}(int64(i + 1))
		}
		wg.Wait()

		require.Equal(t, 1, successes)
		require.Equal(t, 1, rejected)
		require.Equal(t, 0, stockOf(t, st, p.ID))
	}
}

func TestCheckoutProperties(t *testing.T) {
	prices := []string{"15000000", "12000000", "3500000", "19999.99", "0.01"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("total equals sum of exact subtotals and stock is conserved", prop.ForAll(
		func(picks []int, qtys []int) bool {
			n := min(len(picks), len(qtys), orders.MaxCartLines)
			if n == 0 {
				return true
			}
			svc, st, _ := setup(t)
			ids := make([]int64, len(prices))
			for i, price := range prices {
				ids[i] = addProduct(t, st, "P", price, 25, true).ID
			}

			lines := make([]orders.CartLine, n)
			wanted := map[int64]int{}
			for i := 0; i < n; i++ {
				lines[i] = orders.CartLine{ProductID: ids[picks[i]], Quantity: qtys[i]}
				wanted[ids[picks[i]]] += qtys[i]
			}

			res, err := svc.Checkout(context.Background(), orders.CheckoutInput{
				UserID: 1, Items: lines, ShippingAddress: address,
			})
			if err != nil {
				// only legal failure: some product is oversubscribed, and then nothing moved
				if !errors.Is(err, orders.ErrInsufficientStock) {
					return false
				}
				for _, id := range ids {
					if stockOf(t, st, id) != 25 {
						return false
					}
				}
				return st.OrderCount() == 0
			}

			sum := decimal.Zero
			for i, it := range res.Order.Items {
				if it.ProductID != lines[i].ProductID || it.Quantity != lines[i].Quantity {
					return false
				}
				if !it.Subtotal.Equal(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))) {
					return false
				}
				sum = sum.Add(it.Subtotal)
			}
			if !sum.Equal(res.Order.TotalAmount) {
				return false
			}
			for _, id := range ids {
				if stockOf(t, st, id)+wanted[id] != 25 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(prices)-1)),
		gen.SliceOf(gen.IntRange(orders.MinQuantity, orders.MaxQuantity)),
	))

	properties.TestingRun(t)
}
