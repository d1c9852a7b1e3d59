package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	invoicePath        = "/v2/invoices"
	maxErrorBody       = 64 << 10
	defaultTimeout     = 30 * time.Second
	unavailableMessage = "Service unavailable"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-checkout/internal/gateway")

type Config struct {
	BaseURL   string
	SecretKey string
	Currency  string
	Timeout   time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
}

func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, metrics: m}
}

type createInvoiceBody struct {
	ExternalID         string      `json:"external_id"`
	Amount             json.Number `json:"amount"`
	PayerEmail         string      `json:"payer_email,omitempty"`
	Description        string      `json:"description"`
	SuccessRedirectURL string      `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string      `json:"failure_redirect_url,omitempty"`
	Currency           string      `json:"currency"`
}

type invoiceResponse struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	InvoiceURL string          `json:"invoice_url"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// CreateInvoice issues POST /v2/invoices. All failures are *Error.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (inv Invoice, err error) {
	ctx, span := tracer.Start(ctx, "gateway.CreateInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("external_id", req.ExternalID))

	log := logging.FromContext(ctx).With(zap.String("external_id", req.ExternalID))
	defer func() {
		if err == nil {
			c.metrics.GatewayCall("ok")
			span.SetStatus(codes.Ok, "")
			return
		}
		var ge *Error
		if errors.As(err, &ge) {
			c.metrics.GatewayCall(ge.Kind.String())
		}
		log.Warn("gateway invoice failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}()

	body, err := json.Marshal(createInvoiceBody{
		ExternalID:         req.ExternalID,
		Amount:             json.Number(req.Amount.String()),
		PayerEmail:         req.PayerEmail,
		Description:        req.Description,
		SuccessRedirectURL: req.SuccessURL,
		FailureRedirectURL: req.FailureURL,
		Currency:           c.cfg.Currency,
	})
	if err != nil {
		return Invoice{}, &Error{Kind: KindMalformed, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+invoicePath, bytes.NewReader(body))
	if err != nil {
		return Invoice{}, &Error{Kind: KindUnavailable, Message: unavailableMessage, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.cfg.SecretKey, "")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Invoice{}, &Error{Kind: KindUnavailable, Message: unavailableMessage, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return Invoice{}, &Error{Kind: KindUnavailable, StatusCode: resp.StatusCode, Message: unavailableMessage}
	case resp.StatusCode >= 400:
		return Invoice{}, rejected(resp)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Invoice{}, &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Message: "unexpected status"}
	}

	var out invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Invoice{}, &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Message: "invalid invoice response", Err: err}
	}
	if out.ID == "" || out.InvoiceURL == "" {
		return Invoice{}, &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Message: "invoice response missing id or invoice_url"}
	}
	if out.ExternalID == "" {
		out.ExternalID = req.ExternalID
	}
	if out.Amount.IsZero() {
		out.Amount = req.Amount
	}
	log.Info("gateway invoice created", zap.String("invoice_id", out.ID))
	return Invoice{
		ID:         out.ID,
		ExternalID: out.ExternalID,
		Amount:     out.Amount,
		Status:     out.Status,
		InvoiceURL: out.InvoiceURL,
		ExpiryDate: out.ExpiryDate,
	}, nil
}

func rejected(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	_ = json.Unmarshal(raw, &er)
	msg := strings.TrimSpace(er.Message)
	if msg == "" {
		msg = fmt.Sprintf("Payment gateway rejected the request (%d)", resp.StatusCode)
	}
	return &Error{Kind: KindRejected, StatusCode: resp.StatusCode, Code: er.ErrorCode, Message: msg}
}
