package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"couplechat/internal/metrics"
	"couplechat/internal/protocol"
)

// SessionState is the lifecycle stage of a connection.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAnnounced
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAnnounced:
		return "announced"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type SessionConfig struct {
	MaxMessageBytes int64
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	return c
}

// Session is one websocket connection. Inbound frames are handled one at a
// time on the read loop; outbound frames go through a buffered queue
// drained by the write loop.
type Session struct {
	id      string
	subject string
	conn    *websocket.Conn
	router  *Router
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     SessionConfig

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, subject string, router *Router, m *metrics.Metrics, log *zap.Logger, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	return &Session{
		id:      id,
		subject: subject,
		conn:    conn,
		router:  router,
		metrics: m,
		log:     log.With(zap.String("conn_id", id)),
		cfg:     cfg,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Subject is the user id from the upgrade token, or "".
func (s *Session) Subject() string { return s.subject }

// State derives the lifecycle stage from the hub, so a superseded session
// reads as unauthenticated.
func (s *Session) State() SessionState {
	select {
	case <-s.done:
		return StateClosed
	default:
	}
	if _, ok := s.router.Hub().UserFor(s); ok {
		return StateAnnounced
	}
	return StateUnauthenticated
}

// Deliver queues an event without blocking. A full queue drops the event.
func (s *Session) Deliver(ev protocol.Outbound) bool {
	frame, err := protocol.Encode(ev)
	if err != nil {
		s.log.Error("encode event", zap.String("event", ev.Name()), zap.Error(err))
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.metrics.DroppedFrames.Inc()
		s.log.Warn("send buffer full, dropping event", zap.String("event", ev.Name()))
		return false
	}
}

// Serve runs the session until the client goes away or ctx is done.
func (s *Session) Serve(ctx context.Context) {
	s.metrics.Connections.Inc()
	defer s.metrics.Connections.Dec()

	go s.writePump()
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.done:
		}
	}()
	s.readPump(ctx)
}

func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		in, err := protocol.Decode(data)
		if err != nil {
			s.router.Reject(s, err)
			continue
		}
		s.router.Dispatch(ctx, s, in)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// close is idempotent: it unregisters the session and tears down the socket.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		prev := s.State()
		close(s.done)
		s.router.Disconnect(s)
		s.log.Debug("websocket closed", zap.Stringer("state_before", prev))
		// Let the write loop send the close frame before the socket goes.
		time.AfterFunc(time.Second, func() { _ = s.conn.Close() })
	})
}
