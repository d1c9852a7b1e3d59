package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/gateway"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-checkout/internal/payments")

var (
	ErrNotOrderOwner   = errors.New("order belongs to another user")
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
)

type Gateway interface {
	CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (gateway.Invoice, error)
}

type InvoiceInput struct {
	OrderID    int64
	UserID     int64
	PayerEmail string
}

type InvoiceResult struct {
	Payment orders.Payment
	Reused  bool
}

// Invoices creates at most one active payment per order.
type Invoices struct {
	Store      orders.Store
	Gateway    Gateway
	Metrics    *metrics.Metrics
	SuccessURL string
	FailureURL string
	Now        func() time.Time
}

func (s *Invoices) CreateInvoice(ctx context.Context, in InvoiceInput) (res InvoiceResult, err error) {
	ctx, span := tracer.Start(ctx, "payments.CreateInvoice")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", in.OrderID))

	start := s.now()
	log := logging.FromContext(ctx).With(zap.Int64("user_id", in.UserID), zap.Int64("order_id", in.OrderID))
	defer func() {
		outcome := "created"
		switch {
		case err != nil:
			outcome = "error"
			log.Warn("create invoice failed", zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
		case res.Reused:
			outcome = "reused"
			log.Info("invoice reused", zap.String("invoice_id", res.Payment.InvoiceID))
		default:
			log.Info("invoice created", zap.Int64("payment_id", res.Payment.ID), zap.String("invoice_id", res.Payment.InvoiceID))
			span.SetStatus(codes.Ok, "")
		}
		s.Metrics.ObserveUseCase("create_invoice", outcome, s.now().Sub(start))
	}()

	order, err := s.Store.Order(ctx, in.OrderID)
	if err != nil {
		return InvoiceResult{}, err
	}
	if order.UserID != in.UserID {
		return InvoiceResult{}, ErrNotOrderOwner
	}
	if p := order.Payment; p != nil && p.Status == orders.PaymentPending {
		return InvoiceResult{Payment: *p, Reused: true}, nil
	}
	if order.Status != orders.StatusPending {
		return InvoiceResult{}, ErrOrderNotPayable
	}

	// panggil gateway di luar transaksi
	inv, err := s.Gateway.CreateInvoice(ctx, gateway.InvoiceRequest{
		ExternalID:  order.OrderNumber,
		Amount:      order.TotalAmount,
		PayerEmail:  in.PayerEmail,
		Description: fmt.Sprintf("Payment for Order #%s", order.OrderNumber),
		SuccessURL:  s.SuccessURL,
		FailureURL:  s.FailureURL,
	})
	if err != nil {
		return InvoiceResult{}, err
	}

	var out InvoiceResult
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		active, err := tx.ActivePayment(ctx, o.ID)
		if err != nil {
			return err
		}
		if active != nil {
			// request lain menang duluan, invoice baru dibiarkan kedaluwarsa
			log.Warn("discarding duplicate gateway invoice", zap.String("invoice_id", inv.ID), zap.String("kept_invoice_id", active.InvoiceID))
			out = InvoiceResult{Payment: *active, Reused: true}
			return nil
		}
		if o.Status != orders.StatusPending {
			return ErrOrderNotPayable
		}
		p := orders.Payment{
			OrderID:    o.ID,
			InvoiceID:  inv.ID,
			ExternalID: inv.ExternalID,
			Amount:     inv.Amount,
			Status:     orders.PaymentPending,
			PaymentURL: inv.InvoiceURL,
			ExpiresAt:  inv.ExpiryDate,
		}
		if err := tx.InsertPayment(ctx, &p); err != nil {
			return err
		}
		out = InvoiceResult{Payment: p}
		return nil
	})
	if err != nil {
		return InvoiceResult{}, err
	}
	return out, nil
}

func (s *Invoices) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
