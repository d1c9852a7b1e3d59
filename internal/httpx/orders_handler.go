package httpx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 255

var checkoutSchema = schema.MustCompile("checkout", `{
  "type": "object",
  "required": ["items", "shipping_address"],
  "properties": {
    "items": {
      "type": "array",
      "minItems": 1,
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["product_id", "quantity"],
        "properties": {
          "product_id": {"type": "integer", "minimum": 1, "maximum": 9223372036854775807},
          "quantity": {"type": "integer", "minimum": 1, "maximum": 10}
        }
      }
    },
    "shipping_address": {"type": "string", "minLength": 10, "maxLength": 500}
  }
}`)

// StatusCache is the order status projection; *redisx.StatusCache in production.
type StatusCache interface {
	Get(ctx context.Context, orderID int64) (orders.StatusSnapshot, bool, error)
	Set(ctx context.Context, s orders.StatusSnapshot) (bool, error)
}

type OrdersHandler struct {
	Store    orders.Store
	Checkout *orders.Checkout
	Status   StatusCache // optional
	BaseURL  string
}

type CheckoutReq struct {
	Items           []orders.CartLine `json:"items"`
	ShippingAddress string            `json:"shipping_address"`
}

type CheckoutResp struct {
	Order      orders.Order `json:"order"`
	PaymentURL string       `json:"payment_url"`
}

type pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

type statusView struct {
	OrderID   int64         `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	Source    string        `json:"source"` // cache | db
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var req CheckoutReq
	if err := decodeValid(w, r, checkoutSchema, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if utf8.RuneCountInString(key) > maxIdempotencyKeyLen {
		fail(w, http.StatusUnprocessableEntity, "Validation failed", schema.FieldErrors{"idempotency_key": {"must be at most 255 characters"}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, orders.CheckoutInput{
		UserID:          p.UserID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  key,
		TraceID:         middleware.GetReqID(r.Context()),
	})
	var ve *orders.ValidationError
	switch {
	case errors.As(err, &ve):
		writeDomainError(w, r, err)
		return
	case err != nil && orders.IsRejection(err):
		fail(w, http.StatusBadRequest, "Checkout gagal: "+err.Error(), nil)
		return
	case err != nil:
		writeDomainError(w, r, err)
		return
	}

	h.cacheStatus(ctx, orders.SnapshotOf(res.Order))
	resp := CheckoutResp{Order: res.Order, PaymentURL: fmt.Sprintf("%s/payments/create/%d", h.BaseURL, res.Order.ID)}
	if res.Replayed {
		ok(w, http.StatusOK, "Order sudah dibuat sebelumnya", resp)
		return
	}
	ok(w, http.StatusCreated, "Order berhasil dibuat", resp)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	page := orders.Page{Number: atoiDefault(r.URL.Query().Get("page"), 1), Size: atoiDefault(r.URL.Query().Get("per_page"), 10)}.Normalize()

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, total, err := h.Store.OrdersForUser(ctx, p.UserID, page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Daftar order berhasil diambil", map[string]any{
		"orders": list,
		"pagination": pagination{
			CurrentPage: page.Number,
			PerPage:     page.Size,
			Total:       total,
			LastPage:    max(1, int(math.Ceil(float64(total)/float64(page.Size)))),
		},
	})
}

// ownedOrder returns ErrOrderNotFound for orders of other users.
func (h *OrdersHandler) ownedOrder(ctx context.Context, r *http.Request) (orders.Order, error) {
	p, _ := auth.PrincipalFrom(ctx)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	o, err := h.Store.Order(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	if o.UserID != p.UserID {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.ownedOrder(ctx, r)
	if errors.Is(err, orders.ErrOrderNotFound) {
		fail(w, http.StatusNotFound, "Order tidak ditemukan", nil)
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Detail order berhasil diambil", map[string]any{"order": o})
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64); err == nil && h.Status != nil {
		snap, found, err := h.Status.Get(ctx, id)
		if err != nil {
			logging.FromContext(ctx).Warn("status cache read failed", zap.Int64("order_id", id), zap.Error(err))
		}
		if found && snap.UserID == p.UserID {
			ok(w, http.StatusOK, "Status order berhasil diambil", statusView{OrderID: id, Status: snap.Status, UpdatedAt: snap.UpdatedAt, Source: "cache"})
			return
		}
	}

	// 2) fallback DB
	o, err := h.ownedOrder(ctx, r)
	if errors.Is(err, orders.ErrOrderNotFound) {
		fail(w, http.StatusNotFound, "Order tidak ditemukan", nil)
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.cacheStatus(ctx, orders.SnapshotOf(o))
	ok(w, http.StatusOK, "Status order berhasil diambil", statusView{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt, Source: "db"})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, s orders.StatusSnapshot) {
	if h.Status == nil {
		return
	}
	if _, err := h.Status.Set(ctx, s); err != nil {
		logging.FromContext(ctx).Warn("status cache write failed", zap.Int64("order_id", s.OrderID), zap.Error(err))
	}
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
