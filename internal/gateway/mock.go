package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mock issues fake invoices that point back at the local success page.
// Enabled with GATEWAY_MOCK=true.
type Mock struct {
	BaseURL string
	Expiry  time.Duration
}

func (m *Mock) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, &Error{Kind: KindUnavailable, Message: unavailableMessage, Err: err}
	}
	expiry := m.Expiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	id := "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Invoice{
		ID:         id,
		ExternalID: req.ExternalID,
		Amount:     req.Amount,
		Status:     "PENDING",
		InvoiceURL: strings.TrimRight(m.BaseURL, "/") + "/payments/success?invoice_id=" + id,
		ExpiryDate: time.Now().UTC().Add(expiry),
	}, nil
}
