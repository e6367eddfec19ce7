package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/protocol"
)

// Notifier pushes an event to a user's live connection. It reports false
// when the user is offline.
type Notifier interface {
	Notify(userID string, ev protocol.Outbound) bool
}

// Publisher forwards domain events to downstream consumers.
type Publisher interface {
	MessageSent(ctx context.Context, m *domain.Message) error
	MessageRead(ctx context.Context, m *domain.Message) error
}

const publishTimeout = 5 * time.Second

type MessageService struct {
	messages  domain.MessageStore
	publisher Publisher
	log       *zap.Logger

	OpTimeout time.Duration
}

func NewMessageService(messages domain.MessageStore, publisher Publisher, log *zap.Logger, opTimeout time.Duration) *MessageService {
	return &MessageService{
		messages:  messages,
		publisher: publisher,
		log:       log,
		OpTimeout: opTimeout,
	}
}

// Create validates and persists a message from senderID. Nothing is pushed
// to connections here; callers decide about live delivery.
func (s *MessageService) Create(ctx context.Context, senderID string, in protocol.SendMessage) (*domain.Message, error) {
	if err := protocol.ValidateSend(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	m := &domain.Message{
		SenderID:    senderID,
		ReceiverID:  in.ReceiverID,
		Text:        in.Text,
		Attachments: in.Attachments,
	}
	if m.Attachments == nil {
		m.Attachments = []domain.Attachment{}
	}

	ctx, cancel := bounded(ctx, s.OpTimeout)
	defer cancel()
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", timeoutErr(ctx, err))
	}

	s.publish(ctx, m)
	return m, nil
}

// Conversation returns every message between userID and contactID, oldest first.
func (s *MessageService) Conversation(ctx context.Context, userID, contactID string) ([]*domain.Message, error) {
	if contactID == "" {
		return nil, fmt.Errorf("%w: contactId is required", domain.ErrInvalidInput)
	}
	ctx, cancel := bounded(ctx, s.OpTimeout)
	defer cancel()

	msgs, err := s.messages.FindByPair(ctx, userID, contactID, true, 0)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", timeoutErr(ctx, err))
	}
	return msgs, nil
}

// Latest returns the most recent message between a and b, or nil.
func (s *MessageService) Latest(ctx context.Context, a, b string) (*domain.Message, error) {
	ctx, cancel := bounded(ctx, s.OpTimeout)
	defer cancel()

	msgs, err := s.messages.FindByPair(ctx, a, b, false, 1)
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", timeoutErr(ctx, err))
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

func (s *MessageService) publish(ctx context.Context, m *domain.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.MessageSent(ctx, m); err != nil {
		s.log.Warn("publish message sent", zap.String("message_id", m.ID), zap.Error(err))
	}
}

// bounded applies the per-operation timeout. A zero timeout leaves ctx as is.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutErr tags store errors caused by the operation deadline.
func timeoutErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

// MessageResponse is the REST shape of a message.
type MessageResponse struct {
	ID          string              `json:"id"`
	SenderID    string              `json:"senderId"`
	ReceiverID  string              `json:"receiverId"`
	Text        string              `json:"text"`
	Timestamp   time.Time           `json:"timestamp"`
	IsRead      bool                `json:"isRead"`
	Attachments []domain.Attachment `json:"attachments"`
}

func ToResponse(m *domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Text:        m.Text,
		Timestamp:   m.CreatedAt,
		IsRead:      m.IsRead,
		Attachments: m.Attachments,
	}
}

func ToResponses(msgs []*domain.Message) []*MessageResponse {
	out := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToResponse(m))
	}
	return out
}
