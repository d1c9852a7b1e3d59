package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", SecretKey: "xnd_test", Timeout: time.Second}, nil)
}

func sampleRequest() InvoiceRequest {
	return InvoiceRequest{
		ExternalID:  "ORD-20240115-ABCDEF123456",
		Amount:      decimal.RequireFromString("30000000"),
		PayerEmail:  "test@ecommerce.com",
		Description: "Payment for Order #ORD-20240115-ABCDEF123456",
		SuccessURL:  "http://localhost/payments/success",
		FailureURL:  "http://localhost/payments/failed",
	}
}

func TestCreateInvoice(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got map[string]any
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v2/invoices", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "xnd_test", user)
			assert.Empty(t, pass)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"inv_1","external_id":"ORD-20240115-ABCDEF123456","amount":30000000,"status":"PENDING","invoice_url":"https://checkout.example/inv_1","expiry_date":"2024-01-16T10:30:00.000Z"}`))
		})

		inv, err := c.CreateInvoice(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "inv_1", inv.ID)
		assert.Equal(t, "https://checkout.example/inv_1", inv.InvoiceURL)
		assert.True(t, inv.Amount.Equal(decimal.NewFromInt(30000000)))
		assert.Equal(t, 2024, inv.ExpiryDate.Year())

		assert.Equal(t, "ORD-20240115-ABCDEF123456", got["external_id"])
		assert.Equal(t, float64(30000000), got["amount"])
		assert.Equal(t, "IDR", got["currency"])
		assert.Equal(t, "http://localhost/payments/failed", got["failure_redirect_url"])
	})

	t.Run("4xx surfaces gateway message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error_code":"API_VALIDATION_ERROR","message":"amount must be at least 10000"}`))
		})

		_, err := c.CreateInvoice(context.Background(), sampleRequest())
		var ge *Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, KindRejected, ge.Kind)
		assert.Equal(t, "amount must be at least 10000", ge.Message)
		assert.Equal(t, "API_VALIDATION_ERROR", ge.Code)
		assert.False(t, ge.Retryable())
	})

	t.Run("5xx is unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.CreateInvoice(context.Background(), sampleRequest())
		assert.True(t, IsKind(err, KindUnavailable))
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.CreateInvoice(ctx, sampleRequest())
		var ge *Error
		require.ErrorAs(t, err, &ge)
		assert.True(t, ge.Retryable())
	})

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"PENDING"}`))
		})

		_, err := c.CreateInvoice(context.Background(), sampleRequest())
		assert.True(t, IsKind(err, KindMalformed))
	})
}

func TestMock(t *testing.T) {
	m := &Mock{BaseURL: "http://localhost:8081/"}
	inv, err := m.CreateInvoice(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Contains(t, inv.InvoiceURL, "http://localhost:8081/payments/success")
	assert.True(t, inv.ExpiryDate.After(time.Now()))
}
