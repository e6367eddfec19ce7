package ws

import (
	"context"
	"sync"

	"couplechat/internal/domain"
	"couplechat/internal/protocol"
)

// Conn is a live client connection as seen by the hub.
type Conn interface {
	ID() string
	// Deliver queues ev for the client. It reports false when the event
	// could not be queued.
	Deliver(ev protocol.Outbound) bool
}

// Hub is the presence registry: at most one active connection per user.
// A newer registration for a user supersedes the older connection, which
// then no longer resolves to any user.
type Hub struct {
	mu    sync.RWMutex
	users map[string]Conn
	conns map[Conn]string

	observers []domain.PresenceObserver
}

func NewHub(observers ...domain.PresenceObserver) *Hub {
	return &Hub{
		users:     make(map[string]Conn),
		conns:     make(map[Conn]string),
		observers: observers,
	}
}

// Register binds conn to userID, replacing any previous connection for that
// user. It also drops any earlier binding of conn to a different user.
func (h *Hub) Register(userID string, conn Conn) {
	var changes []domain.PresenceEvent

	h.mu.Lock()
	if prevUser, ok := h.conns[conn]; ok && prevUser != userID {
		delete(h.users, prevUser)
		changes = append(changes, domain.PresenceEvent{UserID: prevUser, ConnID: conn.ID(), Online: false})
	}
	if prev, ok := h.users[userID]; ok && prev != conn {
		delete(h.conns, prev)
	}
	h.users[userID] = conn
	h.conns[conn] = userID
	changes = append(changes, domain.PresenceEvent{UserID: userID, ConnID: conn.ID(), Online: true})
	total := len(h.users)
	h.mu.Unlock()

	h.emit(changes, total)
}

// Unregister removes conn. It is a no-op for a connection that was never
// registered or has been superseded. It returns the user conn was bound to.
func (h *Hub) Unregister(conn Conn) (string, bool) {
	h.mu.Lock()
	userID, ok := h.conns[conn]
	if !ok {
		h.mu.Unlock()
		return "", false
	}
	delete(h.conns, conn)
	if cur, ok := h.users[userID]; ok && cur == conn {
		delete(h.users, userID)
	}
	total := len(h.users)
	h.mu.Unlock()

	h.emit([]domain.PresenceEvent{{UserID: userID, ConnID: conn.ID(), Online: false}}, total)
	return userID, true
}

// Lookup returns the active connection of userID.
func (h *Hub) Lookup(userID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.users[userID]
	return c, ok
}

// UserFor returns the user conn currently represents.
func (h *Hub) UserFor(conn Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.conns[conn]
	return userID, ok
}

// Notify delivers ev to userID if the user is online.
func (h *Hub) Notify(userID string, ev protocol.Outbound) bool {
	c, ok := h.Lookup(userID)
	if !ok {
		return false
	}
	return c.Deliver(ev)
}

// Online returns the number of users with an active connection.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// Snapshot maps every online user to its connection id.
func (h *Hub) Snapshot() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.users))
	for userID, c := range h.users {
		out[userID] = c.ID()
	}
	return out
}

func (h *Hub) emit(changes []domain.PresenceEvent, total int) {
	if len(h.observers) == 0 {
		return
	}
	ctx := context.Background()
	for _, ev := range changes {
		ev.Total = total
		for _, o := range h.observers {
			o.PresenceChanged(ctx, ev)
		}
	}
}
