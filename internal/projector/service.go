// Package projector keeps the order status cache in step with the order
// event stream.
package projector

import (
	"context"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// StatusCache is satisfied by *redisx.StatusCache.
type StatusCache interface {
	Set(ctx context.Context, s orders.StatusSnapshot) (bool, error)
}

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Service struct {
	Cache   StatusCache
	Dedup   Deduper
	Metrics *metrics.Metrics
}

// HandleEvent dipasang sebagai handler consumer. Error berarti offset tidak di-commit.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	log := logging.FromContext(ctx).With(zap.String("topic", m.Topic), zap.Int64("offset", m.Offset))

	// 1) decode envelope; pesan rusak di-skip supaya partisi tidak macet
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		log.Warn("skipping undecodable event", zap.Error(err))
		s.Metrics.EventProjected("unknown", "invalid")
		return nil
	}
	log = log.With(zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))

	snap, ok, err := snapshotFor(env)
	if err != nil {
		log.Warn("skipping event with bad payload", zap.Error(err))
		s.Metrics.EventProjected(env.EventType, "invalid")
		return nil
	}
	if !ok {
		s.Metrics.EventProjected(env.EventType, "ignored")
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		s.Metrics.EventProjected(env.EventType, "duplicate")
		return nil
	}

	// 3) tulis snapshot; event lama tidak menimpa yang baru
	written, err := s.Cache.Set(ctx, snap)
	if err != nil {
		if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
			log.Warn("dedup release failed", zap.Error(rerr))
		}
		s.Metrics.EventProjected(env.EventType, "error")
		return err
	}
	outcome := "applied"
	if !written {
		outcome = "stale"
	}
	log.Debug("order status projected", zap.Int64("order_id", snap.OrderID), zap.String("status", string(snap.Status)), zap.String("outcome", outcome))
	s.Metrics.EventProjected(env.EventType, outcome)
	return nil
}

// snapshotFor returns ok=false for events that do not carry an order status.
func snapshotFor(env orders.Envelope) (orders.StatusSnapshot, bool, error) {
	var (
		orderID, userID int64
		status          orders.Status
	)
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return orders.StatusSnapshot{}, false, err
		}
		orderID, userID, status = p.OrderID, p.UserID, p.Status
	case orders.EventOrderPaid, orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusPayload](env.Payload)
		if err != nil {
			return orders.StatusSnapshot{}, false, err
		}
		orderID, userID, status = p.OrderID, p.UserID, p.Status
	default:
		return orders.StatusSnapshot{}, false, nil
	}
	return orders.StatusSnapshot{
		OrderID:   orderID,
		UserID:    userID,
		Status:    status,
		UpdatedAt: env.OccurredAt,
		Version:   env.OccurredAt.UnixMilli(),
	}, true, nil
}
