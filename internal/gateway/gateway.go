// Package gateway talks to the hosted-invoice payment API (Xendit v2 invoices).
// It never touches persistence.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceRequest struct {
	ExternalID  string // order number
	Amount      decimal.Decimal
	PayerEmail  string
	Description string
	SuccessURL  string
	FailureURL  string
}

type Invoice struct {
	ID         string
	ExternalID string
	Amount     decimal.Decimal
	Status     string
	InvoiceURL string
	ExpiryDate time.Time
}

type Kind int

const (
	// KindRejected: the gateway refused the request (4xx). Message is safe to surface.
	KindRejected Kind = iota + 1
	// KindUnavailable: network failure, timeout or 5xx. Safe to retry.
	KindUnavailable
	// KindMalformed: 2xx with a body we cannot use.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

type Error struct {
	Kind       Kind
	StatusCode int
	Code       string // gateway error_code, when present
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment gateway %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment gateway %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool { return e.Kind == KindUnavailable }

func IsKind(err error, k Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == k
}
