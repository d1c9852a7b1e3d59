package payments

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/schema"
	"github.com/shopspring/decimal"
)

const notificationSchema = `{
  "type": "object",
  "required": ["id", "external_id", "status", "amount"],
  "properties": {
    "id": {"type": "string", "minLength": 1, "maxLength": 255},
    "external_id": {"type": "string", "minLength": 1, "maxLength": 255},
    "status": {"enum": ["PENDING", "PAID", "EXPIRED", "FAILED"]},
    "amount": {
      "anyOf": [
        {"type": "number", "minimum": 0},
        {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$"}
      ]
    },
    "payer_email": {"type": ["string", "null"]},
    "payment_method": {"type": ["string", "null"], "maxLength": 64},
    "paid_at": {"type": ["string", "null"], "format": "date-time"}
  }
}`

var notificationValidator = schema.MustCompile("payment-notification", notificationSchema)

// Notification is a payment status callback from the gateway.
type Notification struct {
	InvoiceID     string               `json:"id"`
	ExternalID    string               `json:"external_id"`
	Status        orders.PaymentStatus `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	PayerEmail    string               `json:"payer_email"`
	PaymentMethod string               `json:"payment_method"`
	PaidAt        *time.Time           `json:"paid_at"`
}

// PayloadError wraps the field errors of a rejected notification.
type PayloadError struct {
	Fields schema.FieldErrors
}

func (e *PayloadError) Error() string {
	return (&schema.Error{Fields: e.Fields}).Error()
}

// ParseNotification validates body before decoding it.
func ParseNotification(body []byte) (Notification, error) {
	if err := notificationValidator.ValidateBytes(body); err != nil {
		if se, ok := err.(*schema.Error); ok {
			return Notification{}, &PayloadError{Fields: se.Fields}
		}
		return Notification{}, err
	}
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, &PayloadError{Fields: schema.FieldErrors{"body": {err.Error()}}}
	}
	return n, nil
}
