package orders

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderPaid            = "OrderPaid"
	EventOrderCancelled       = "OrderCancelled"
	EventPaymentStatusChanged = "PaymentStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload per event ----

type ItemLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Items       []ItemLine      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
}

// OrderStatusPayload is shared by OrderPaid and OrderCancelled.
type OrderStatusPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"` // e.g., PAYMENT_EXPIRED
}

type PaymentStatusChangedPayload struct {
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	PaymentID int64           `json:"payment_id"`
	InvoiceID string          `json:"invoice_id"`
	From      PaymentStatus   `json:"from"`
	To        PaymentStatus   `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewEnvelope wraps payload as a v1 event correlated to an order.
func NewEnvelope(eventType, producer, traceID string, orderID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: OrderKey(orderID),
		Payload:       b,
	}, nil
}

func OrderCreatedEvent(producer, traceID string, o Order) (Envelope, error) {
	items := make([]ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemLine{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return NewEnvelope(EventOrderCreated, producer, traceID, o.ID, OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
	})
}
