package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/protocol"
)

// ReceiptService owns the read flag of messages.
type ReceiptService struct {
	messages  domain.MessageStore
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger

	OpTimeout time.Duration
}

func NewReceiptService(messages domain.MessageStore, notifier Notifier, publisher Publisher, log *zap.Logger, opTimeout time.Duration) *ReceiptService {
	return &ReceiptService{
		messages:  messages,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
		OpTimeout: opTimeout,
	}
}

// MarkRead marks one message read on behalf of its receiver. The original
// sender gets a message_read event only when the flag actually flips and
// the sender is online.
func (s *ReceiptService) MarkRead(ctx context.Context, readerID, messageID string) (*domain.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("%w: messageId is required", domain.ErrInvalidInput)
	}
	ctx, cancel := bounded(ctx, s.OpTimeout)
	defer cancel()

	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", timeoutErr(ctx, err))
	}
	if m.ReceiverID != readerID {
		return nil, fmt.Errorf("%w: only the receiver can mark a message read", domain.ErrForbidden)
	}

	changed, err := s.messages.MarkRead(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", timeoutErr(ctx, err))
	}
	m.IsRead = true
	if !changed {
		return m, nil
	}

	s.notifier.Notify(m.SenderID, protocol.MessageRead{MessageID: m.ID})

	pubCtx, pubCancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer pubCancel()
	if err := s.publisher.MessageRead(pubCtx, m); err != nil {
		s.log.Warn("publish message read", zap.String("message_id", m.ID), zap.Error(err))
	}
	return m, nil
}

// MarkAllRead marks every unread message addressed to receiverID. It runs
// on announce and on conversation fetch and sends no realtime events.
func (s *ReceiptService) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	ctx, cancel := bounded(ctx, s.OpTimeout)
	defer cancel()

	n, err := s.messages.MarkReadBatch(ctx, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", timeoutErr(ctx, err))
	}
	return n, nil
}
