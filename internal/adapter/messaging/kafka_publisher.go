package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"storecore/internal/core/domain"
)

// KafkaPublisher emits order lifecycle events for downstream accounting.
// Delivery is best-effort; callers decide whether to block on it.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

type orderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type orderEvent struct {
	Type        string           `json:"type"`
	OrderID     string           `json:"order_id"`
	UserID      string           `json:"user_id,omitempty"`
	TotalAmount string           `json:"total_amount,omitempty"`
	Items       []orderEventItem `json:"items,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

func (p *KafkaPublisher) OrderPlaced(ctx context.Context, order domain.Order) error {
	ev := orderEvent{
		Type:        "order.placed",
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now(),
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, orderEventItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}
	return p.publish(ctx, order.ID, ev)
}

func (p *KafkaPublisher) OrderCancelled(ctx context.Context, orderID string) error {
	return p.publish(ctx, orderID, orderEvent{
		Type:       "order.cancelled",
		OrderID:    orderID,
		OccurredAt: time.Now(),
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, key string, ev orderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher stands in when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) OrderPlaced(context.Context, domain.Order) error { return nil }
func (NopPublisher) OrderCancelled(context.Context, string) error    { return nil }
