// Package events publishes order lifecycle events to Kafka. Eventing is
// optional: when no brokers are configured the application wires the no-op
// publisher instead of this one.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/gadget-cartel/internal/domain/order"
)

// Event types carried in the message payload.
const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
)

var _ order.EventPublisher = (*Publisher)(nil)

// Publisher writes order events to a single Kafka topic, keyed by order ID so
// per-order ordering is preserved across partitions.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			Async:        false,
		},
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// OrderPlaced publishes an order.placed event.
func (p *Publisher) OrderPlaced(ctx context.Context, o *order.Order) error {
	return p.publish(ctx, o, TypeOrderPlaced, func(e *jx.Encoder) {})
}

// OrderStatusChanged publishes an order.status_changed event carrying the
// previous state alongside the new one.
func (p *Publisher) OrderStatusChanged(ctx context.Context, o *order.Order, prevStatus, prevDelivery string) error {
	return p.publish(ctx, o, TypeOrderStatusChanged, func(e *jx.Encoder) {
		e.Field("previous_status", func(e *jx.Encoder) { e.Str(prevStatus) })
		e.Field("previous_delivery_status", func(e *jx.Encoder) { e.Str(prevDelivery) })
	})
}

func (p *Publisher) publish(ctx context.Context, o *order.Order, eventType string, extra func(e *jx.Encoder)) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(eventType) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.Number()) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(o.PaymentStatus) })
		e.Field("delivery_status", func(e *jx.Encoder) { e.Str(o.DeliveryStatus) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.String()) })
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(time.Now().UTC().Format(time.RFC3339)) })
		extra(e)
	})

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: e.Bytes(),
	})
	return errors.Wrap(err, "write event")
}
