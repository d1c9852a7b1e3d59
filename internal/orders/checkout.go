package orders

import (
	"context"
	"errors"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	MaxCartLines  = 10
	MinQuantity   = 1
	MaxQuantity   = 10
	MinAddressLen = 10
	MaxAddressLen = 500

	orderNumberAttempts = 3
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-checkout/internal/orders")

type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CheckoutInput struct {
	UserID          int64
	Items           []CartLine
	ShippingAddress string
	IdempotencyKey  string // optional
	TraceID         string
}

type CheckoutResult struct {
	Order    Order
	Replayed bool // idempotency key matched an earlier order
}

// Checkout turns a cart into a pending order, decrementing stock in the same
// transaction. Nothing is written unless every line can be fulfilled.
type Checkout struct {
	Store     Store
	Events    EventSink
	Metrics   *metrics.Metrics
	Producer  string
	Now       func() time.Time
	NewNumber func(time.Time) string
}

func ValidateCart(in CheckoutInput) error {
	if len(in.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	if len(in.Items) > MaxCartLines {
		return &ValidationError{Field: "items", Reason: "at most 10 items are allowed"}
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return &ValidationError{Field: "items.product_id", Reason: "must be a positive id"}
		}
		if it.Quantity < MinQuantity || it.Quantity > MaxQuantity {
			return &ValidationError{Field: "items.quantity", Reason: "must be between 1 and 10"}
		}
	}
	n := utf8.RuneCountInString(in.ShippingAddress)
	if n < MinAddressLen || n > MaxAddressLen {
		return &ValidationError{Field: "shipping_address", Reason: "must be between 10 and 500 characters"}
	}
	return nil
}

func (c *Checkout) Checkout(ctx context.Context, in CheckoutInput) (res CheckoutResult, err error) {
	ctx, span := tracer.Start(ctx, "orders.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", in.UserID), attribute.Int("lines", len(in.Items)))

	start := c.now()
	log := logging.FromContext(ctx).With(zap.Int64("user_id", in.UserID))
	defer func() {
		outcome := "success"
		switch {
		case err != nil && IsRejection(err):
			outcome = "rejected"
			log.Warn("checkout rejected", zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
		case err != nil:
			outcome = "error"
			log.Error("checkout failed", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout failed")
		case res.Replayed:
			outcome = "replayed"
			log.Info("checkout replayed", zap.Int64("order_id", res.Order.ID), zap.String("order_number", res.Order.OrderNumber))
		default:
			log.Info("checkout succeeded",
				zap.Int64("order_id", res.Order.ID),
				zap.String("order_number", res.Order.OrderNumber),
				zap.String("total_amount", res.Order.TotalAmount.String()))
			span.SetStatus(codes.Ok, "")
		}
		c.Metrics.ObserveUseCase("checkout", outcome, c.now().Sub(start))
	}()

	if err := ValidateCart(in); err != nil {
		return CheckoutResult{}, err
	}

	if in.IdempotencyKey != "" {
		o, err := c.Store.OrderByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
		if err == nil {
			return CheckoutResult{Order: o, Replayed: true}, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return CheckoutResult{}, err
		}
	}

	var order Order
	for attempt := 1; ; attempt++ {
		order, err = c.place(ctx, in)
		if errors.Is(err, ErrDuplicateOrderNumber) && attempt < orderNumberAttempts {
			log.Warn("order number collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// request paralel dengan key yang sama sudah commit duluan
		o, lerr := c.Store.OrderByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
		if lerr == nil {
			return CheckoutResult{Order: o, Replayed: true}, nil
		}
	}
	if err != nil {
		return CheckoutResult{}, err
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))
	if ev, err := OrderCreatedEvent(c.Producer, in.TraceID, order); err == nil {
		c.events().Emit(ctx, ev)
	} else {
		log.Warn("build OrderCreated event", zap.Error(err))
	}
	return CheckoutResult{Order: order}, nil
}

// place runs one checkout transaction.
func (c *Checkout) place(ctx context.Context, in CheckoutInput) (Order, error) {
	now := c.now()
	order := Order{
		UserID:          in.UserID,
		OrderNumber:     c.newNumber(now),
		Status:          StatusPending,
		ShippingAddress: in.ShippingAddress,
		IdempotencyKey:  in.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]OrderItem, len(in.Items)),
	}

	err := c.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// lock berurutan by product id supaya dua checkout tidak saling deadlock
		idx := make([]int, len(in.Items))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return in.Items[idx[a]].ProductID < in.Items[idx[b]].ProductID })

		for _, i := range idx {
			line := in.Items[i]
			p, err := tx.LockProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, ErrProductNotFound) {
					return &ProductError{ProductID: line.ProductID, Err: ErrProductNotFound}
				}
				return err
			}
			if !p.IsActive {
				return &ProductError{ProductID: p.ID, Err: ErrProductInactive}
			}
			if p.Stock < line.Quantity {
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: line.Quantity}
			}
			ok, err := tx.DecrementStock(ctx, p.ID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: line.Quantity}
			}
			order.Items[i] = OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				Price:       p.Price,
				Subtotal:    p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
				CreatedAt:   now,
			}
		}
		order.TotalAmount = order.ItemsTotal()
		return tx.InsertOrder(ctx, &order)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// IsRejection reports errors caused by the request rather than the system.
func IsRejection(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrInsufficientStock)
}

func (c *Checkout) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Checkout) newNumber(t time.Time) string {
	if c.NewNumber != nil {
		return c.NewNumber(t)
	}
	return NewOrderNumber(t)
}

func (c *Checkout) events() EventSink {
	if c.Events == nil {
		return NopSink{}
	}
	return c.Events
}
