package orders

import "strconv"

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
	TopicPaymentStatus  = "payment.status"
)

// AllTopics is what the status projector subscribes to.
var AllTopics = []string{TopicOrderCreated, TopicOrderPaid, TopicOrderCancelled, TopicPaymentStatus}

func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderPaid:
		return TopicOrderPaid
	case EventOrderCancelled:
		return TopicOrderCancelled
	default:
		return TopicPaymentStatus
	}
}

func OrderKey(orderID int64) string { return strconv.FormatInt(orderID, 10) }

// Partition key = order id, supaya semua event 1 order tetap berurutan.
func PartitionKey(correlationID string) []byte { return []byte(correlationID) }
