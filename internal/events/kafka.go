// Package events publishes chat domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"couplechat/internal/domain"
)

const (
	TypeMessageSent = "chat.message.sent"
	TypeMessageRead = "chat.message.read"
)

// Event is the JSON value written for every published record.
type Event struct {
	Type       string          `json:"type"`
	MessageID  string          `json:"messageId"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Message    *domain.Message `json:"message,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publishes are synchronous single records. kafka-go otherwise holds a
// partial batch for one second.
const batchTimeout = 10 * time.Millisecond

type KafkaPublisher struct {
	writer *kafkago.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 5 * time.Second,
		BatchTimeout: batchTimeout,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) MessageSent(ctx context.Context, m *domain.Message) error {
	return p.publish(ctx, Event{
		Type:       TypeMessageSent,
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m,
		OccurredAt: m.CreatedAt,
	})
}

func (p *KafkaPublisher) MessageRead(ctx context.Context, m *domain.Message) error {
	return p.publish(ctx, Event{
		Type:       TypeMessageRead,
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		OccurredAt: time.Now().UTC(),
	})
}

// publish keys records by conversation so both directions share a partition.
func (p *KafkaPublisher) publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	msg := kafkago.Message{
		Key:   []byte(ConversationKey(ev.SenderID, ev.ReceiverID)),
		Value: b,
		Time:  ev.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ConversationKey is the same for (a, b) and (b, a).
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) MessageSent(context.Context, *domain.Message) error { return nil }
func (Nop) MessageRead(context.Context, *domain.Message) error { return nil }
