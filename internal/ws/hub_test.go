package ws_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couplechat/internal/domain"
	"couplechat/internal/protocol"
	"couplechat/internal/ws"
)

type fakeConn struct {
	id      string
	subject string

	mu     sync.Mutex
	events []protocol.Outbound
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string      { return c.id }
func (c *fakeConn) Subject() string { return c.subject }

func (c *fakeConn) Deliver(ev protocol.Outbound) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *fakeConn) Events() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Outbound(nil), c.events...)
}

// Take returns and clears the recorded events.
func (c *fakeConn) Take() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

type recordingObserver struct {
	mu     sync.Mutex
	events []domain.PresenceEvent
}

func (o *recordingObserver) PresenceChanged(_ context.Context, ev domain.PresenceEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func TestHub_RegisterLookupUnregister(t *testing.T) {
	obs := &recordingObserver{}
	hub := ws.NewHub(obs)
	c := newFakeConn("c1")

	_, ok := hub.Lookup("alice")
	assert.False(t, ok)

	hub.Register("alice", c)
	got, ok := hub.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, c, got)

	user, ok := hub.UserFor(c)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, 1, hub.Online())

	user, ok = hub.Unregister(c)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	_, ok = hub.Lookup("alice")
	assert.False(t, ok)
	assert.Zero(t, hub.Online())

	_, ok = hub.Unregister(c)
	assert.False(t, ok, "second unregister is a no-op")

	require.Len(t, obs.events, 2)
	assert.Equal(t, domain.PresenceEvent{UserID: "alice", ConnID: "c1", Online: true, Total: 1}, obs.events[0])
	assert.Equal(t, domain.PresenceEvent{UserID: "alice", ConnID: "c1", Online: false, Total: 0}, obs.events[1])
}

func TestHub_NewerRegistrationSupersedes(t *testing.T) {
	hub := ws.NewHub()
	old := newFakeConn("old")
	cur := newFakeConn("new")

	hub.Register("alice", old)
	hub.Register("alice", cur)

	got, ok := hub.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, cur, got)

	_, ok = hub.UserFor(old)
	assert.False(t, ok, "superseded connection no longer resolves")

	_, ok = hub.Unregister(old)
	assert.False(t, ok)
	got, ok = hub.Lookup("alice")
	require.True(t, ok, "removing the superseded connection keeps the newer one")
	assert.Same(t, cur, got)
}

func TestHub_ConnectionSwitchesUser(t *testing.T) {
	hub := ws.NewHub()
	c := newFakeConn("c1")

	hub.Register("alice", c)
	hub.Register("bob", c)

	_, ok := hub.Lookup("alice")
	assert.False(t, ok)
	user, ok := hub.UserFor(c)
	require.True(t, ok)
	assert.Equal(t, "bob", user)
	assert.Equal(t, 1, hub.Online())
}

func TestHub_Notify(t *testing.T) {
	hub := ws.NewHub()
	c := newFakeConn("c1")
	hub.Register("alice", c)

	assert.True(t, hub.Notify("alice", protocol.UserTyping{SenderID: "bob"}))
	assert.False(t, hub.Notify("carol", protocol.UserTyping{SenderID: "bob"}))
	assert.Equal(t, []protocol.Outbound{protocol.UserTyping{SenderID: "bob"}}, c.Events())
	assert.Equal(t, map[string]string{"alice": "c1"}, hub.Snapshot())
}

func TestHub_ConcurrentRegistrationsKeepOneEntryPerUser(t *testing.T) {
	hub := ws.NewHub()
	conns := make([]*fakeConn, 50)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			hub.Register("alice", c)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, hub.Online())
	winner, ok := hub.Lookup("alice")
	require.True(t, ok)

	resolved := 0
	for _, c := range conns {
		if _, ok := hub.UserFor(c); ok {
			resolved++
			assert.Same(t, winner, c)
		}
	}
	assert.Equal(t, 1, resolved)
}
