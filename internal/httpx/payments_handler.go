package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBytes = 64 << 10

type PaymentsHandler struct {
	Invoices *payments.Invoices
}

// Register mounts invoice creation; it needs a bearer token.
func (h *PaymentsHandler) Register(r chi.Router) {
	r.Get("/payments/create/{orderId}", h.createPayment)
}

// RegisterCallbacks mounts the redirect targets of the hosted payment page.
func (h *PaymentsHandler) RegisterCallbacks(r chi.Router) {
	r.Get("/payments/success", h.paymentSuccess)
	r.Get("/payments/failed", h.paymentFailed)
}

func (h *PaymentsHandler) createPayment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		fail(w, http.StatusNotFound, "Order not found", nil)
		return
	}

	// gateway timeout sendiri 30s, sisakan waktu untuk transaksi
	ctx, cancel := context.WithTimeout(r.Context(), 40*time.Second)
	defer cancel()

	res, err := h.Invoices.CreateInvoice(ctx, payments.InvoiceInput{OrderID: orderID, UserID: p.UserID, PayerEmail: p.Email})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Payment invoice created successfully", map[string]any{"payment_url": res.Payment.PaymentURL})
}

func (h *PaymentsHandler) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, "Payment completed successfully", nil)
}

func (h *PaymentsHandler) paymentFailed(w http.ResponseWriter, r *http.Request) {
	fail(w, http.StatusBadRequest, "Payment failed or was cancelled", nil)
}

type WebhookHandler struct {
	Reconciler *payments.Reconciler
	Status     StatusCache // optional
	Now        func() time.Time
}

type WebhookResp struct {
	Processed   bool                 `json:"processed"`
	PaymentID   string               `json:"payment_id"`
	Status      orders.PaymentStatus `json:"status"`
	OrderStatus orders.Status        `json:"order_status"`
	Outcome     payments.Outcome     `json:"outcome"`
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/payment", h.handlePaymentWebhook)
}

func (h *WebhookHandler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := readBody(w, r, maxWebhookBytes)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid webhook payload", map[string][]string{"body": {"is too large or unreadable"}})
		return
	}
	n, err := payments.ParseNotification(body)
	if err != nil {
		log.Warn("webhook payload rejected", zap.Error(err))
		writeDomainError(w, r, err)
		return
	}
	log.Info("payment webhook received", zap.String("invoice_id", n.InvoiceID), zap.String("status", string(n.Status)))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reconciler.Reconcile(ctx, n)
	switch {
	case errors.Is(err, orders.ErrPaymentNotFound):
		fail(w, http.StatusNotFound, "Payment not found", nil)
		return
	case err != nil:
		// 500 supaya gateway mengulang pengiriman
		fail(w, http.StatusInternalServerError, "Webhook processing failed", nil)
		return
	}

	if res.Outcome == payments.OutcomeApplied && h.Status != nil {
		now := h.now()
		snap := orders.StatusSnapshot{OrderID: res.OrderID, UserID: res.UserID, Status: res.OrderStatus, UpdatedAt: now, Version: now.UnixMilli()}
		if _, err := h.Status.Set(ctx, snap); err != nil {
			log.Warn("status cache write failed", zap.Int64("order_id", res.OrderID), zap.Error(err))
		}
	}

	msg := "Webhook processed successfully"
	if !res.Processed {
		msg = "Webhook ignored: payment already final"
	}
	ok(w, http.StatusOK, msg, WebhookResp{
		Processed:   res.Processed,
		PaymentID:   res.InvoiceID,
		Status:      res.PaymentStatus,
		OrderStatus: res.OrderStatus,
		Outcome:     res.Outcome,
	})
}

func (h *WebhookHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}
