package payments

import (
	"context"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeConflict  Outcome = "conflict"
)

// Decide classifies an incoming status against the stored one. Terminal
// statuses are never overwritten; a repeated non-terminal status is applied
// again so late fields such as payment_method are kept.
func Decide(current, incoming orders.PaymentStatus) Outcome {
	switch {
	case current.Terminal() && current == incoming:
		return OutcomeDuplicate
	case current.Terminal():
		return OutcomeConflict
	default:
		return OutcomeApplied
	}
}

type Result struct {
	Processed     bool
	Outcome       Outcome
	InvoiceID     string
	PaymentID     int64
	OrderID       int64
	UserID        int64
	PaymentStatus orders.PaymentStatus
	OrderStatus   orders.Status
}

// Reconciler applies gateway notifications to payments and their orders.
type Reconciler struct {
	Store    orders.Store
	Events   orders.EventSink
	Metrics  *metrics.Metrics
	Producer string
	Now      func() time.Time
}

func (r *Reconciler) Reconcile(ctx context.Context, n Notification) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "payments.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("invoice_id", n.InvoiceID), attribute.String("status", string(n.Status)))

	start := r.now()
	log := logging.FromContext(ctx).With(zap.String("invoice_id", n.InvoiceID), zap.String("incoming_status", string(n.Status)))
	defer func() {
		outcome := string(res.Outcome)
		if err != nil {
			outcome = "error"
			log.Error("webhook reconciliation failed", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		r.Metrics.WebhookDelivery(string(n.Status), outcome)
		r.Metrics.ObserveUseCase("reconcile_payment", outcome, r.now().Sub(start))
	}()

	var (
		before      orders.Payment
		after       orders.Payment
		order       orders.Order
		orderChange bool
	)
	err = r.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		p, err := tx.LockPaymentByInvoice(ctx, n.InvoiceID)
		if err != nil {
			return err
		}
		before, after = p, p

		o, err := tx.LockOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}
		order = o

		res = Result{
			InvoiceID:     p.InvoiceID,
			PaymentID:     p.ID,
			OrderID:       o.ID,
			UserID:        o.UserID,
			PaymentStatus: p.Status,
			OrderStatus:   o.Status,
		}
		res.Outcome = Decide(p.Status, n.Status)
		if res.Outcome != OutcomeApplied {
			return nil
		}

		if n.ExternalID != p.ExternalID {
			log.Warn("webhook external_id mismatch", zap.String("expected", p.ExternalID), zap.String("got", n.ExternalID))
		}
		if !n.Amount.Equal(p.Amount) {
			log.Warn("webhook amount mismatch", zap.String("expected", p.Amount.String()), zap.String("got", n.Amount.String()))
		}

		after.Status = n.Status
		if n.Status == orders.PaymentPaid {
			paidAt := r.now().UTC()
			if n.PaidAt != nil {
				paidAt = n.PaidAt.UTC()
			}
			after.PaidAt = &paidAt
		}
		if n.PaymentMethod != "" {
			m := n.PaymentMethod
			after.PaymentMethod = &m
		}
		if err := tx.UpdatePayment(ctx, after); err != nil {
			return err
		}
		res.PaymentStatus = after.Status

		target, ok := cascade(n.Status)
		if !ok {
			return nil
		}
		// webhook hanya boleh memindahkan order dari pending
		if o.Status != orders.StatusPending || !orders.CanTransition(o.Status, target) {
			// misal PAID datang untuk order yang sudah cancelled: butuh refund manual
			log.Error("payment status cannot move order",
				zap.Int64("order_id", o.ID),
				zap.String("order_status", string(o.Status)),
				zap.String("target_status", string(target)))
			return nil
		}
		if target == orders.StatusCancelled {
			for _, it := range o.Items {
				if err := tx.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateOrderStatus(ctx, o.ID, target); err != nil {
			return err
		}
		res.OrderStatus = target
		order.Status = target
		orderChange = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res.Processed = res.Outcome != OutcomeConflict
	log = log.With(zap.Int64("payment_id", res.PaymentID), zap.Int64("order_id", res.OrderID))
	switch res.Outcome {
	case OutcomeDuplicate:
		log.Info("webhook duplicate ignored")
	case OutcomeConflict:
		log.Warn("webhook conflicts with terminal payment status", zap.String("current_status", string(before.Status)))
	default:
		log.Info("webhook applied",
			zap.String("payment_status", string(res.PaymentStatus)),
			zap.String("order_status", string(res.OrderStatus)))
		r.emit(ctx, before, after, order, orderChange)
	}
	return res, nil
}

// cascade maps a payment status to the order status it drives.
func cascade(s orders.PaymentStatus) (orders.Status, bool) {
	switch s {
	case orders.PaymentPaid:
		return orders.StatusPaid, true
	case orders.PaymentExpired:
		return orders.StatusCancelled, true
	}
	return "", false
}

func (r *Reconciler) emit(ctx context.Context, before, after orders.Payment, o orders.Order, orderChange bool) {
	log := logging.FromContext(ctx)
	sink := r.Events
	if sink == nil {
		sink = orders.NopSink{}
	}
	if before.Status == after.Status && !orderChange {
		return
	}
	ev, err := orders.NewEnvelope(orders.EventPaymentStatusChanged, r.Producer, "", o.ID, orders.PaymentStatusChangedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		PaymentID: after.ID,
		InvoiceID: after.InvoiceID,
		From:      before.Status,
		To:        after.Status,
		Amount:    after.Amount,
	})
	if err != nil {
		log.Warn("build PaymentStatusChanged event", zap.Error(err))
	} else {
		sink.Emit(ctx, ev)
	}
	if !orderChange {
		return
	}

	eventType, reason := orders.EventOrderPaid, ""
	if o.Status == orders.StatusCancelled {
		eventType, reason = orders.EventOrderCancelled, "PAYMENT_EXPIRED"
	}
	ev, err = orders.NewEnvelope(eventType, r.Producer, "", o.ID, orders.OrderStatusPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      o.Status,
		Reason:      reason,
	})
	if err != nil {
		log.Warn("build order status event", zap.Error(err))
		return
	}
	sink.Emit(ctx, ev)
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
