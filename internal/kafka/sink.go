package kafka

import (
	"context"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/segmentio/kafka-go"
	"strconv"
)

// publisher is satisfied by *Producer.
type publisher interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header)
}

// EventSink publishes domain events to their topic, keyed by order id.
type EventSink struct{ P publisher }

func NewEventSink(p *Producer) *EventSink { return &EventSink{P: p} }

func (s *EventSink) Emit(_ context.Context, ev orders.Envelope) {
	s.P.Publish(orders.TopicFor(ev.EventType), orders.PartitionKey(ev.CorrelationID), MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(ev.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}
