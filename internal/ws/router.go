package ws

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"couplechat/internal/domain"
	"couplechat/internal/metrics"
	"couplechat/internal/protocol"
	"couplechat/internal/service"
)

const (
	msgUnauthenticated = "user not authenticated"
	msgTokenMismatch   = "user id does not match token"
	msgTimeout         = "operation timed out"
	msgNotFound        = "message not found"
	msgForbidden       = "not allowed"
)

type RouterConfig struct {
	// ReadOnAnnounce marks every pending message of a user read when the
	// user announces itself.
	ReadOnAnnounce bool
	TypingTTL      time.Duration
}

// Router applies client events to the hub and the message services. Events
// from one connection are handled in the order they arrive.
type Router struct {
	hub      *Hub
	messages *service.MessageService
	receipts *service.ReceiptService
	typing   *TypingTracker
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      RouterConfig
}

func NewRouter(
	hub *Hub,
	messages *service.MessageService,
	receipts *service.ReceiptService,
	m *metrics.Metrics,
	log *zap.Logger,
	cfg RouterConfig,
) *Router {
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = 6 * time.Second
	}
	return &Router{
		hub:      hub,
		messages: messages,
		receipts: receipts,
		typing:   NewTypingTracker(cfg.TypingTTL),
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
}

// Hub returns the presence registry the router routes through.
func (r *Router) Hub() *Hub { return r.hub }

// Dispatch handles one decoded client event.
func (r *Router) Dispatch(ctx context.Context, conn Conn, in protocol.Inbound) {
	switch ev := in.(type) {
	case protocol.UserConnected:
		r.count(protocol.EventUserConnected)
		r.Announce(ctx, conn, ev.UserID)
	case protocol.SendMessage:
		r.count(protocol.EventSendMessage)
		r.Send(ctx, conn, ev)
	case protocol.ReadMessage:
		r.count(protocol.EventReadMessage)
		r.MarkRead(ctx, conn, ev.MessageID)
	case protocol.StartTyping:
		r.count(protocol.EventTyping)
		r.Typing(conn, ev.ReceiverID, true)
	case protocol.StopTyping:
		r.count(protocol.EventStopTyping)
		r.Typing(conn, ev.ReceiverID, false)
	default:
		r.reject(conn, "invalid", "unsupported event")
	}
}

// Announce binds conn to userID. When the connection was opened with a
// token, userID must be the token's user.
func (r *Router) Announce(ctx context.Context, conn Conn, userID string) {
	if a, ok := conn.(interface{ Subject() string }); ok {
		if sub := a.Subject(); sub != "" && sub != userID {
			r.reject(conn, "unauthenticated", msgTokenMismatch)
			return
		}
	}

	r.hub.Register(userID, conn)
	r.log.Debug("user announced", zap.String("user_id", userID), zap.String("conn_id", conn.ID()))

	if r.cfg.ReadOnAnnounce {
		r.MarkAllReceivedRead(ctx, userID)
	}
}

// MarkAllReceivedRead marks every message pending for userID as read. No
// message_read events are emitted for these.
func (r *Router) MarkAllReceivedRead(ctx context.Context, userID string) {
	n, err := r.receipts.MarkAllRead(ctx, userID)
	if err != nil {
		r.log.Warn("bulk mark read failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if n > 0 {
		r.log.Debug("bulk marked read", zap.String("user_id", userID), zap.Int64("count", n))
	}
}

// Send persists a message, confirms it to the sender and pushes it to the
// receiver when online.
func (r *Router) Send(ctx context.Context, conn Conn, req protocol.SendMessage) {
	senderID, ok := r.hub.UserFor(conn)
	if !ok {
		r.reject(conn, "unauthenticated", msgUnauthenticated)
		return
	}

	m, err := r.messages.Create(ctx, senderID, req)
	if err != nil {
		r.fail(conn, err, "failed to send message")
		return
	}

	conn.Deliver(protocol.MessageSent{Message: m})
	if r.hub.Notify(m.ReceiverID, protocol.NewMessage{Message: m}) {
		r.metrics.Messages.WithLabelValues("live").Inc()
	} else {
		r.metrics.Messages.WithLabelValues("stored").Inc()
	}
}

// MarkRead marks one message read for the connection's user.
func (r *Router) MarkRead(ctx context.Context, conn Conn, messageID string) {
	readerID, ok := r.hub.UserFor(conn)
	if !ok {
		r.reject(conn, "unauthenticated", msgUnauthenticated)
		return
	}
	if _, err := r.receipts.MarkRead(ctx, readerID, messageID); err != nil {
		r.fail(conn, err, "failed to mark message read")
	}
}

// Typing relays a typing indicator to an online receiver.
func (r *Router) Typing(conn Conn, receiverID string, typing bool) {
	senderID, ok := r.hub.UserFor(conn)
	if !ok {
		r.reject(conn, "unauthenticated", msgUnauthenticated)
		return
	}
	if typing {
		r.typing.Start(senderID, receiverID)
		r.hub.Notify(receiverID, protocol.UserTyping{SenderID: senderID})
		return
	}
	r.typing.Stop(senderID, receiverID)
	r.hub.Notify(receiverID, protocol.UserStopTyping{SenderID: senderID})
}

// Disconnect drops conn from the hub. Typing indicators started by the user
// are cleared when conn was the user's active connection.
func (r *Router) Disconnect(conn Conn) {
	userID, ok := r.hub.Unregister(conn)
	if !ok {
		return
	}
	for _, to := range r.typing.ClearFrom(userID) {
		r.hub.Notify(to, protocol.UserStopTyping{SenderID: userID})
	}
	r.log.Debug("user disconnected", zap.String("user_id", userID), zap.String("conn_id", conn.ID()))
}

// Reject reports an undecodable frame back to its connection.
func (r *Router) Reject(conn Conn, err error) {
	r.reject(conn, "invalid", err.Error())
}

// ExpireTyping sends user_stop_typing for indicators past their window.
func (r *Router) ExpireTyping() {
	for _, p := range r.typing.Expire() {
		r.hub.Notify(p.To, protocol.UserStopTyping{SenderID: p.From})
	}
}

// Run expires stale typing indicators until ctx is done.
func (r *Router) Run(ctx context.Context) {
	interval := r.cfg.TypingTTL / 3
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ExpireTyping()
		}
	}
}

func (r *Router) fail(conn Conn, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		r.reject(conn, "timeout", msgTimeout)
	case errors.Is(err, domain.ErrInvalidInput):
		r.reject(conn, "invalid", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		r.reject(conn, "not_found", msgNotFound)
	case errors.Is(err, domain.ErrForbidden):
		r.reject(conn, "forbidden", msgForbidden)
	default:
		r.log.Error(fallback, zap.String("conn_id", conn.ID()), zap.Error(err))
		r.reject(conn, "store", fallback)
	}
}

func (r *Router) reject(conn Conn, reason, message string) {
	r.metrics.Errors.WithLabelValues(reason).Inc()
	conn.Deliver(protocol.Error{Message: message})
}

func (r *Router) count(event string) {
	r.metrics.Events.WithLabelValues(event).Inc()
}
