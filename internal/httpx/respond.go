package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/gateway"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
	"github.com/ariefcatur/go-shop-checkout/internal/schema"
	"go.uber.org/zap"
)

type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, msg string, data any) {
	writeJSON(w, code, successBody{Success: true, Message: msg, Data: data})
}

func fail(w http.ResponseWriter, code int, msg string, errs any) {
	writeJSON(w, code, errorBody{Success: false, Message: msg, Errors: errs})
}

// writeDomainError maps an error to its status code. Anything unknown is a
// logged 500 with a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		se  *schema.Error
		pe  *payments.PayloadError
		ve  *orders.ValidationError
		gwe *gateway.Error
	)
	switch {
	case errors.As(err, &se):
		fail(w, http.StatusUnprocessableEntity, "Validation failed", se.Fields)
	case errors.As(err, &pe):
		fail(w, http.StatusBadRequest, "Invalid webhook payload", pe.Fields)
	case errors.As(err, &ve):
		fail(w, http.StatusUnprocessableEntity, "Validation failed", schema.FieldErrors{ve.Field: {ve.Reason}})
	case errors.Is(err, auth.ErrEmailTaken):
		fail(w, http.StatusUnprocessableEntity, "Validation failed", schema.FieldErrors{"email": {"has already been taken"}})
	case errors.Is(err, auth.ErrInvalidCredentials):
		fail(w, http.StatusUnauthorized, "Email atau password salah", nil)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		fail(w, http.StatusUnauthorized, "Unauthenticated", nil)
	case errors.Is(err, payments.ErrNotOrderOwner):
		fail(w, http.StatusUnauthorized, "Anda tidak memiliki akses ke order ini", nil)
	case errors.Is(err, payments.ErrOrderNotPayable):
		fail(w, http.StatusBadRequest, "Order tidak dapat dibayar", nil)
	case errors.Is(err, orders.ErrOrderNotFound):
		fail(w, http.StatusNotFound, "Order not found", nil)
	case errors.Is(err, orders.ErrPaymentNotFound):
		fail(w, http.StatusNotFound, "Payment not found", nil)
	case errors.Is(err, orders.ErrProductNotFound):
		fail(w, http.StatusNotFound, "Product not found", nil)
	case errors.As(err, &gwe):
		switch gwe.Kind {
		case gateway.KindRejected:
			fail(w, http.StatusBadRequest, gwe.Message, nil)
		default:
			logging.FromContext(r.Context()).Error("payment gateway failure", zap.Error(err))
			fail(w, http.StatusBadGateway, "Service unavailable", nil)
		}
	default:
		logging.FromContext(r.Context()).Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		fail(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
